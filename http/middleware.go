package http

import (
	"fmt"
	"net/http"

	"github.com/mark3labs/x402-gate"
)

// NewX402Middleware creates a new x402 payment middleware.
// It returns a middleware function that wraps HTTP handlers with payment gating.
// It panics if config is invalid; use NewGate to handle the error instead.
func NewX402Middleware(config *Config) func(http.Handler) http.Handler {
	gate, err := NewGate(config)
	if err != nil {
		panic(fmt.Sprintf("invalid x402 middleware configuration: %v", err))
	}
	return gate.Middleware
}

// Middleware wraps next so that it runs only for paid requests. The payment is
// settled before next is invoked and next's response is passed through unchanged.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Evaluate(r)
		if !d.Granted {
			d.Write(w)
			return
		}
		if d.PaymentResponse != "" {
			w.Header().Set(x402.PaymentResponseHeader, d.PaymentResponse)
		}
		next.ServeHTTP(w, r.WithContext(WithPayment(r.Context(), d.Payment)))
	})
}
