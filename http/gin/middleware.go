// Package gin provides Gin-compatible middleware for x402 payment gating.
// It translates gin.Context to the gate in the http package.
package gin

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/x402-gate"
	httpx402 "github.com/mark3labs/x402-gate/http"
)

// PaymentKey is the gin.Context key holding the *httpx402.PaymentInfo of a paid request.
const PaymentKey = "x402_payment"

// NewGinX402Middleware creates a new x402 payment middleware for Gin.
// Requests that are not paid are aborted with the gate's response. Paid
// requests continue with the payment stored under PaymentKey and in the
// request context. It panics if config is invalid.
//
// Example usage:
//
//	r := gin.Default()
//	r.POST("/compute", NewGinX402Middleware(config), func(c *gin.Context) {
//	    payment := c.MustGet(PaymentKey).(*httpx402.PaymentInfo)
//	    c.JSON(200, gin.H{"txHash": payment.SettlementID})
//	})
func NewGinX402Middleware(config *httpx402.Config) gin.HandlerFunc {
	gate, err := httpx402.NewGate(config)
	if err != nil {
		panic(fmt.Sprintf("invalid x402 middleware configuration: %v", err))
	}
	return FromGate(gate)
}

// FromGate adapts an existing gate.
func FromGate(gate *httpx402.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Evaluate(c.Request)
		if !d.Granted {
			c.AbortWithStatusJSON(d.Status, d.Body)
			return
		}

		if d.PaymentResponse != "" {
			c.Header(x402.PaymentResponseHeader, d.PaymentResponse)
		}
		c.Set(PaymentKey, d.Payment)
		c.Request = c.Request.WithContext(httpx402.WithPayment(c.Request.Context(), d.Payment))
		c.Next()
	}
}

// GetPayment returns the payment stored by the middleware.
func GetPayment(c *gin.Context) (*httpx402.PaymentInfo, bool) {
	v, ok := c.Get(PaymentKey)
	if !ok {
		return nil, false
	}
	info, ok := v.(*httpx402.PaymentInfo)
	return info, ok
}
