// Package facilitator defines the verify/settle contract between a payment gate
// and the service that checks and executes payments, with an in-process
// implementation and an HTTP server exposing it.
package facilitator

import (
	"context"

	"github.com/mark3labs/x402-gate"
)

// Interface defines the facilitator contract for payment verification and settlement.
// The in-process Local facilitator and the remote HTTP client both satisfy it.
type Interface interface {
	// Verify checks a payment authorization without executing it.
	Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*VerifyResponse, error)

	// Settle executes a payment. Policy rejections come back as a response with
	// Success false; an error means the outcome is unknown.
	Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error)

	// Supported lists the payment kinds the facilitator accepts.
	Supported(ctx context.Context) (*SupportedResponse, error)
}

// Request is the body of /verify and /settle calls.
type Request struct {
	X402Version         int                     `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirement `json:"paymentRequirements"`
}

// VerifyResponse contains the payment verification result from the facilitator.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer"`
}

// SupportedKind describes a supported payment type with its configuration.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse lists all payment types supported by the facilitator.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}
