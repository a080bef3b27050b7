package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports gate events as Prometheus metrics.
type Prometheus struct {
	outcomes   *prometheus.CounterVec
	settlement *prometheus.HistogramVec
}

// NewPrometheus registers the gate metrics with reg. A nil reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "gate_requests_total",
			Help:      "Gated requests by terminal outcome.",
		},
		[]string{"outcome", "network"},
	)

	settlement := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "x402",
			Name:      "settlement_duration_seconds",
			Help:      "Time spent settling verified payments.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode", "network", "success"},
	)

	for _, c := range []prometheus.Collector{outcomes, settlement} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Prometheus{outcomes: outcomes, settlement: settlement}, nil
}

// RecordOutcome implements Recorder.
func (p *Prometheus) RecordOutcome(outcome Outcome, network string) {
	p.outcomes.WithLabelValues(string(outcome), network).Inc()
}

// ObserveSettlement implements Recorder.
func (p *Prometheus) ObserveSettlement(mode, network string, d time.Duration, success bool) {
	p.settlement.WithLabelValues(mode, network, strconv.FormatBool(success)).Observe(d.Seconds())
}
