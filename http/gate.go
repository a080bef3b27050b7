// Package http gates net/http handlers behind x402 payments and provides the
// paying client side of the protocol.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/encoding"
	"github.com/mark3labs/x402-gate/facilitator"
	"github.com/mark3labs/x402-gate/metrics"
	"github.com/mark3labs/x402-gate/settlement"
	"github.com/mark3labs/x402-gate/validation"
	"github.com/mark3labs/x402-gate/verify"
)

// Response messages returned by the gate.
const (
	MsgPaymentRequired    = "Payment required for this resource"
	MsgInvalidHeader      = "Invalid X-PAYMENT header format"
	MsgVerificationFailed = "Payment verification failed"
	MsgProcessingError    = "Payment processing error"
	MsgSettlementFailed   = "Payment settlement failed"
	msgUnexpected         = "An unexpected error occurred while processing the payment"
)

// Config holds the configuration for the x402 middleware.
type Config struct {
	// Route is the price and recipient of the protected resource.
	Route x402.RouteConfig

	// Facilitator verifies and settles payments. When nil an in-process
	// facilitator is built from Verifier, Settler and Nonces.
	Facilitator facilitator.Interface

	// Verifier checks payments in-process. Defaults to verify.New().
	Verifier *verify.Verifier

	// Settler settles verified payments in-process. Defaults to simulated settlement.
	Settler settlement.Settler

	// Nonces tracks consumed authorizations. Defaults to an in-memory tracker.
	Nonces settlement.NonceTracker

	// DisableNonceTracking turns off application-side replay protection.
	DisableNonceTracking bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to metrics.Noop.
	Metrics metrics.Recorder
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key for storing verified payment information.
const PaymentContextKey = contextKey("x402_payment")

// PaymentInfo is attached to the request context of granted requests.
type PaymentInfo struct {
	Payment         x402.PaymentPayload `json:"payment"`
	PaymentVerified bool                `json:"paymentVerified"`
	SettlementID    string              `json:"settlementId"`
	Payer           string              `json:"payer,omitempty"`
	Simulated       bool                `json:"simulated,omitempty"`
}

// PaymentFromContext returns the payment attached by the gate, if any.
func PaymentFromContext(ctx context.Context) (*PaymentInfo, bool) {
	info, ok := ctx.Value(PaymentContextKey).(*PaymentInfo)
	return info, ok && info != nil
}

// WithPayment returns a copy of ctx carrying info.
func WithPayment(ctx context.Context, info *PaymentInfo) context.Context {
	return context.WithValue(ctx, PaymentContextKey, info)
}

// Decision is the gate's verdict on one request. Either Granted is true and
// Payment is set, or Status and Body describe the response to send.
type Decision struct {
	Outcome metrics.Outcome
	Granted bool

	Status int
	Body   interface{}

	Payment *PaymentInfo

	// PaymentResponse is the encoded X-PAYMENT-RESPONSE value of a granted request.
	PaymentResponse string
}

// VerificationFailure is the 402 body for a payment that was decoded but rejected.
type VerificationFailure struct {
	Error  string                           `json:"error"`
	Reason string                           `json:"reason"`
	X402   x402.PaymentRequirementsResponse `json:"x402"`
}

// ErrorBody is the body of 400 and 500 responses.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Gate evaluates requests against a single route.
type Gate struct {
	route       x402.RouteConfig
	facilitator facilitator.Interface
	mode        string
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewGate validates config and builds a Gate.
func NewGate(config *Config) (*Gate, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", x402.ErrInvalidConfig)
	}
	if err := validation.ValidateRoute(config.Route); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := config.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	f := config.Facilitator
	if f == nil {
		opts := []facilitator.LocalOption{
			facilitator.WithLogger(logger),
			facilitator.WithNetworks(config.Route.Network),
		}
		switch {
		case config.DisableNonceTracking:
			opts = append(opts, facilitator.WithNonceTracker(nil))
		case config.Nonces != nil:
			opts = append(opts, facilitator.WithNonceTracker(config.Nonces))
		}
		local, err := facilitator.NewLocal(config.Verifier, config.Settler, opts...)
		if err != nil {
			return nil, err
		}
		f = local
	}

	mode := "remote"
	if m, ok := f.(interface{ Mode() string }); ok {
		mode = m.Mode()
	}

	return &Gate{
		route:       config.Route,
		facilitator: f,
		mode:        mode,
		logger:      logger,
		metrics:     recorder,
	}, nil
}

// Route returns the gate's route configuration.
func (g *Gate) Route() x402.RouteConfig {
	return g.route
}

// Requirement builds the payment requirement for r.
func (g *Gate) Requirement(r *http.Request) x402.PaymentRequirement {
	route := g.route
	if route.Description == "" {
		route.Description = "Payment required for " + r.URL.Path
	}
	return x402.BuildRequirement(ResourceURL(r), route)
}

// ResourceURL returns the absolute URL of the request. The scheme comes from
// the TLS state or the X-Forwarded-Proto header.
func ResourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Evaluate runs the payment state machine for r. It never panics; unexpected
// failures become a 500 decision.
func (g *Gate) Evaluate(r *http.Request) (d Decision) {
	logger := g.logger.With("request_id", uuid.NewString(), "path", r.URL.Path)
	network := g.route.Network

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while processing payment", "panic", rec)
			d = errorDecision(metrics.OutcomeInternalError, http.StatusInternalServerError, MsgProcessingError, msgUnexpected)
		}
		g.metrics.RecordOutcome(d.Outcome, network)
	}()

	requirement := g.Requirement(r)

	header := r.Header.Get(x402.PaymentHeader)
	if header == "" {
		logger.Info("no payment header provided")
		envelope := x402.NewRequirementsResponse(requirement)
		envelope.Error = MsgPaymentRequired
		return Decision{
			Outcome: metrics.OutcomeChallenged,
			Status:  http.StatusPaymentRequired,
			Body:    envelope,
		}
	}

	payment, err := encoding.DecodePayment(header)
	if err == nil {
		err = validation.ValidatePaymentPayload(payment)
	}
	if err != nil {
		logger.Warn("invalid payment header", "error", err)
		return errorDecision(metrics.OutcomeMalformed, http.StatusBadRequest, MsgInvalidHeader, "")
	}

	logger = logger.With("network", payment.Network, "payer", payment.Payload.From)
	logger.Info("verifying payment", "scheme", payment.Scheme)

	verifyResp, err := g.facilitator.Verify(r.Context(), payment, requirement)
	if err != nil {
		logger.Error("payment verification errored", "error", err)
		return errorDecision(metrics.OutcomeInternalError, http.StatusInternalServerError, MsgProcessingError, "Payment could not be verified")
	}
	if !verifyResp.IsValid {
		logger.Warn("payment verification failed", "reason", verifyResp.InvalidReason)
		return rejected(verifyResp.InvalidReason, requirement)
	}

	logger.Info("settling payment", "mode", g.mode)
	start := time.Now()
	settled, err := g.facilitator.Settle(r.Context(), payment, requirement)
	g.metrics.ObserveSettlement(g.mode, network, time.Since(start), err == nil && settled != nil && settled.Success)
	if err != nil {
		logger.Error("settlement failed", "error", err)
		message := "Settlement could not be completed"
		if errors.Is(err, x402.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			message = "Settlement timed out"
		}
		return errorDecision(metrics.OutcomeSettlementError, http.StatusInternalServerError, MsgSettlementFailed, message)
	}
	if settled == nil {
		logger.Error("settlement returned no result")
		return errorDecision(metrics.OutcomeSettlementError, http.StatusInternalServerError, MsgSettlementFailed, "Settlement could not be completed")
	}
	if !settled.Success {
		logger.Warn("settlement rejected", "reason", settled.ErrorReason)
		return rejected(settled.ErrorReason, requirement)
	}

	logger.Info("payment settled", "transaction", settled.Transaction, "simulated", settled.Simulated)

	encoded, err := encoding.EncodeSettlement(*settled)
	if err != nil {
		// The payment went through, so the request is still granted.
		logger.Warn("failed to encode payment response header", "error", err)
	}

	payer := settled.Payer
	if payer == "" {
		payer = verifyResp.Payer
	}

	return Decision{
		Outcome: metrics.OutcomeGranted,
		Granted: true,
		Payment: &PaymentInfo{
			Payment:         payment,
			PaymentVerified: true,
			SettlementID:    settled.Transaction,
			Payer:           payer,
			Simulated:       settled.Simulated,
		},
		PaymentResponse: encoded,
	}
}

func rejected(reason string, requirement x402.PaymentRequirement) Decision {
	return Decision{
		Outcome: metrics.OutcomeRejected,
		Status:  http.StatusPaymentRequired,
		Body: VerificationFailure{
			Error:  MsgVerificationFailed,
			Reason: reason,
			X402:   x402.NewRequirementsResponse(requirement),
		},
	}
}

func errorDecision(outcome metrics.Outcome, status int, msg, detail string) Decision {
	return Decision{
		Outcome: outcome,
		Status:  status,
		Body:    ErrorBody{Error: msg, Message: detail},
	}
}
