// Package settlement executes verified x402 payments, either on-chain through an
// EIP-3009 transferWithAuthorization call or as a local simulation.
package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/encoding"
)

// Settler turns a verified payment into a settlement outcome. A returned error
// means the payment may or may not have moved funds and must not be reported as
// success.
type Settler interface {
	Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error)
}

// Mode names a settlement mode in logs and metrics.
const (
	ModeSimulated = "simulated"
	ModeOnChain   = "onchain"
)

// Simulated derives a deterministic transaction id from the payment without any I/O.
// The id is keccak256 of the canonical JSON of the payment and is flagged as
// simulated in the response. It is not a chain transaction.
type Simulated struct{}

// NewSimulated returns a Simulated settler.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Settle implements Settler.
func (s *Simulated) Settle(_ context.Context, payment x402.PaymentPayload, _ x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	id, err := SimulatedID(payment)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSettlementFailed, "failed to derive simulated settlement id", err)
	}
	return &x402.SettlementResponse{
		Success:     true,
		Transaction: id,
		Network:     payment.Network,
		Payer:       payment.Payload.From,
		Simulated:   true,
	}, nil
}

// SimulatedID returns the 0x-prefixed keccak256 of the canonical JSON of payment.
func SimulatedID(payment x402.PaymentPayload) (string, error) {
	data, err := encoding.CanonicalJSON(payment)
	if err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(data).Hex(), nil
}

// ModeOf reports the metrics mode of a settler.
func ModeOf(s Settler) string {
	if _, ok := s.(*Simulated); ok {
		return ModeSimulated
	}
	return ModeOnChain
}
