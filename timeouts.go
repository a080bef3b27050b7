package x402

import (
	"fmt"
	"time"
)

// TimeoutConfig bounds the blocking operations of the settlement path.
type TimeoutConfig struct {
	// RPCTimeout bounds single read-only RPC calls such as the chain id lookup.
	RPCTimeout time.Duration

	// SettleTimeout bounds submission plus confirmation of an on-chain settlement.
	SettleTimeout time.Duration
}

// DefaultTimeouts are used when no TimeoutConfig is supplied.
var DefaultTimeouts = TimeoutConfig{
	RPCTimeout:    5 * time.Second,
	SettleTimeout: 60 * time.Second,
}

// Validate checks that all timeouts are positive.
func (c TimeoutConfig) Validate() error {
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("%w: RPCTimeout must be positive", ErrInvalidConfig)
	}
	if c.SettleTimeout <= 0 {
		return fmt.Errorf("%w: SettleTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}
