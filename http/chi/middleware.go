// Package chi provides Chi-compatible middleware for x402 payment gating.
// It is a thin adapter over the gate in the http package.
package chi

import (
	"fmt"
	"net/http"

	httpx402 "github.com/mark3labs/x402-gate/http"
)

// NewChiX402Middleware creates a new x402 payment middleware for Chi.
// OPTIONS requests pass through unpaid so CORS preflight keeps working.
// It panics if config is invalid.
//
// Example usage:
//
//	route, _ := x402.NewUSDCRoute(x402.BaseSepolia, "0.05", "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
//	r := chi.NewRouter()
//	r.With(NewChiX402Middleware(&httpx402.Config{Route: route})).Post("/compute", handler)
func NewChiX402Middleware(config *httpx402.Config) func(http.Handler) http.Handler {
	gate, err := httpx402.NewGate(config)
	if err != nil {
		panic(fmt.Sprintf("invalid x402 middleware configuration: %v", err))
	}
	return FromGate(gate)
}

// FromGate adapts an existing gate, e.g. one shared with other routers.
func FromGate(gate *httpx402.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		paid := gate.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			paid.ServeHTTP(w, r)
		})
	}
}
