// Package metrics records payment gate outcomes and settlement latency.
package metrics

import "time"

// Outcome is the terminal state of one gated request.
type Outcome string

const (
	OutcomeChallenged      Outcome = "challenged"
	OutcomeMalformed       Outcome = "malformed"
	OutcomeRejected        Outcome = "rejected"
	OutcomeGranted         Outcome = "granted"
	OutcomeSettlementError Outcome = "settlement_error"
	OutcomeInternalError   Outcome = "internal_error"
)

// Recorder receives gate events.
type Recorder interface {
	RecordOutcome(outcome Outcome, network string)
	ObserveSettlement(mode, network string, d time.Duration, success bool)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordOutcome(Outcome, string)                          {}
func (Noop) ObserveSettlement(string, string, time.Duration, bool) {}
