package x402

import (
	"math/big"
	"time"
)

// Signer produces signed payment authorizations on the client side.
type Signer interface {
	// Network returns the network identifier this signer pays on.
	Network() string

	// Scheme returns the payment scheme identifier ("exact").
	Scheme() string

	// CanSign reports whether the signer supports the requirement's network and asset.
	CanSign(requirement *PaymentRequirement) bool

	// Sign creates a signed payment payload for the requirement.
	Sign(requirement *PaymentRequirement) (*PaymentPayload, error)

	// GetPriority returns the signer's priority. Lower numbers win.
	GetPriority() int

	// GetTokens returns the tokens this signer can pay with.
	GetTokens() []TokenConfig

	// GetMaxAmount returns the per-call spending limit, or nil if unlimited.
	GetMaxAmount() *big.Int
}

// PaymentEventType identifies a client-side payment lifecycle event.
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "attempt"
	PaymentEventSuccess PaymentEventType = "success"
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent describes a payment attempt made by an HTTP client.
type PaymentEvent struct {
	Type        PaymentEventType
	Timestamp   time.Time
	URL         string
	Network     string
	Amount      string
	Asset       string
	Recipient   string
	Transaction string
	Error       error
	Duration    time.Duration
}

// PaymentCallback receives payment lifecycle events.
type PaymentCallback func(event PaymentEvent)
