package x402

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// AmountToAtomic converts a decimal amount such as "1.5" into atomic units for a token
// with the given decimals ("1500000" for 6 decimals). Amounts with more precision than
// the token supports are rejected rather than rounded.
func AmountToAtomic(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("%w: must be non-negative", ErrInvalidAmount)
	}
	atomic := d.Shift(decimals)
	if !atomic.IsInteger() {
		return "", fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return atomic.BigInt().String(), nil
}

// AtomicToAmount converts atomic units back to a decimal string ("1500000" -> "1.5").
func AtomicToAmount(atomic string, decimals int32) (string, error) {
	v, ok := new(big.Int).SetString(atomic, 10)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, atomic)
	}
	return decimal.NewFromBigInt(v, -decimals).String(), nil
}
