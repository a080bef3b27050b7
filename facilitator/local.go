package facilitator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/settlement"
	"github.com/mark3labs/x402-gate/verify"
)

// ReasonNonceReused is reported when an authorization nonce was already settled.
const ReasonNonceReused = "Authorization nonce already used"

// Local verifies and settles payments in-process.
type Local struct {
	verifier *verify.Verifier
	settler  settlement.Settler
	nonces   settlement.NonceTracker
	networks []string
	logger   *slog.Logger
}

// LocalOption configures a Local facilitator.
type LocalOption func(*Local)

// WithNonceTracker sets the replay tracker. Pass nil to disable replay protection.
func WithNonceTracker(n settlement.NonceTracker) LocalOption {
	return func(l *Local) {
		l.nonces = n
	}
}

// WithNetworks sets the networks reported by Supported.
func WithNetworks(networks ...string) LocalOption {
	return func(l *Local) {
		l.networks = networks
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// NewLocal creates a facilitator from a verifier and a settler. Replay
// protection uses an in-memory tracker on the verifier's clock unless
// WithNonceTracker overrides it.
func NewLocal(verifier *verify.Verifier, settler settlement.Settler, opts ...LocalOption) (*Local, error) {
	if verifier == nil {
		verifier = verify.New()
	}
	if settler == nil {
		settler = settlement.NewSimulated()
	}
	nonces, err := settlement.NewMemoryNonces(0, verifier.Clock())
	if err != nil {
		return nil, err
	}

	l := &Local{
		verifier: verifier,
		settler:  settler,
		nonces:   nonces,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Mode reports the settlement mode for metrics.
func (l *Local) Mode() string {
	return settlement.ModeOf(l.settler)
}

// Verify implements Interface.
func (l *Local) Verify(_ context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*VerifyResponse, error) {
	result := l.verifier.Verify(payment, requirement)
	return &VerifyResponse{
		IsValid:       result.Valid,
		InvalidReason: result.Reason,
		Payer:         result.Payer,
	}, nil
}

// Settle implements Interface. The payment is verified again so that /settle is
// safe to call on its own, then its nonce is reserved before settling. A
// reservation is kept when settlement fails since the transfer may have landed.
func (l *Local) Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	rejected := func(reason string) *x402.SettlementResponse {
		return &x402.SettlementResponse{
			Success:     false,
			ErrorReason: reason,
			Network:     payment.Network,
			Payer:       payment.Payload.From,
		}
	}

	if result := l.verifier.Verify(payment, requirement); !result.Valid {
		return rejected(result.Reason), nil
	}

	if l.nonces != nil {
		err := l.nonces.Reserve(payment.Payload.From, payment.Payload.Nonce, payment.Payload.ValidBefore)
		if errors.Is(err, x402.ErrNonceReused) {
			l.logger.Warn("rejected replayed authorization", "payer", payment.Payload.From, "nonce", payment.Payload.Nonce)
			return rejected(ReasonNonceReused), nil
		}
		if err != nil {
			return nil, err
		}
	}

	return l.settler.Settle(ctx, payment, requirement)
}

// Supported implements Interface.
func (l *Local) Supported(context.Context) (*SupportedResponse, error) {
	kinds := make([]SupportedKind, 0, len(l.networks))
	for _, network := range l.networks {
		kinds = append(kinds, SupportedKind{
			X402Version: x402.X402Version,
			Scheme:      x402.SchemeExact,
			Network:     network,
		})
	}
	return &SupportedResponse{Kinds: kinds}, nil
}
