// Package pocketbase provides PocketBase-compatible middleware for x402 payment gating.
package pocketbase

import (
	"fmt"

	"github.com/mark3labs/x402-gate"
	httpx402 "github.com/mark3labs/x402-gate/http"
	"github.com/pocketbase/pocketbase/core"
)

// PaymentKey is the event store key holding the *httpx402.PaymentInfo of a paid request.
const PaymentKey = "x402_payment"

// NewPocketBaseX402Middleware creates a middleware for PocketBase routes and groups.
// It panics if config is invalid.
//
// Example usage:
//
//	se.Router.POST("/api/compute", handler).BindFunc(NewPocketBaseX402Middleware(config))
func NewPocketBaseX402Middleware(config *httpx402.Config) func(e *core.RequestEvent) error {
	gate, err := httpx402.NewGate(config)
	if err != nil {
		panic(fmt.Sprintf("invalid x402 middleware configuration: %v", err))
	}
	return FromGate(gate)
}

// FromGate adapts an existing gate.
func FromGate(gate *httpx402.Gate) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		d := gate.Evaluate(e.Request)
		if !d.Granted {
			return e.JSON(d.Status, d.Body)
		}

		if d.PaymentResponse != "" {
			e.Response.Header().Set(x402.PaymentResponseHeader, d.PaymentResponse)
		}
		e.Set(PaymentKey, d.Payment)
		e.Request = e.Request.WithContext(httpx402.WithPayment(e.Request.Context(), d.Payment))
		return e.Next()
	}
}

// GetPayment returns the payment stored by the middleware.
func GetPayment(e *core.RequestEvent) (*httpx402.PaymentInfo, bool) {
	info, ok := e.Get(PaymentKey).(*httpx402.PaymentInfo)
	return info, ok && info != nil
}
