// Package validation checks route configuration and payment payloads before they
// reach the gate.
package validation

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/x402-gate"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("network", func(fl validator.FieldLevel) bool {
		return x402.ValidateNetwork(fl.Field().String()) == nil
	})
	_ = validate.RegisterValidation("atomic", func(fl validator.FieldLevel) bool {
		return ValidateAmount(fl.Field().String()) == nil
	})
}

// ValidateAmount validates that an amount is a canonical base-10 integer greater than zero.
// Signs, leading zeros and decimal points are rejected because amounts are compared as strings.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}
	for _, c := range amount {
		if c < '0' || c > '9' {
			return fmt.Errorf("invalid amount format: %s", amount)
		}
	}
	if len(amount) > 1 && amount[0] == '0' {
		return fmt.Errorf("amount has leading zeros: %s", amount)
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}
	if amt.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %s", amount)
	}
	return nil
}

// ValidateAddress validates a 0x-prefixed 20-byte hex address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !common.IsHexAddress(address) || !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
	}
	return nil
}

// ValidateRoute checks a route configuration. Errors wrap x402.ErrInvalidConfig.
func ValidateRoute(route x402.RouteConfig) error {
	if err := validate.Struct(route); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: route %s", x402.ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", x402.ErrInvalidConfig, err)
	}
	if route.TokenName == "" || route.TokenVersion == "" {
		if name, version := route.TokenDomain(); name == "" || version == "" {
			return fmt.Errorf("%w: route asset %s has no known EIP-712 domain, set TokenName and TokenVersion",
				x402.ErrInvalidConfig, route.Asset)
		}
	}
	return nil
}

// ValidatePaymentRequirement validates a requirement received from a server.
func ValidatePaymentRequirement(req x402.PaymentRequirement) error {
	if req.Scheme != x402.SchemeExact {
		return fmt.Errorf("invalid requirement: unsupported scheme %q", req.Scheme)
	}
	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}
	if req.Network == "" {
		return fmt.Errorf("invalid requirement: network cannot be empty")
	}
	if err := ValidateAddress(req.PayTo); err != nil {
		return fmt.Errorf("invalid requirement: payTo %w", err)
	}
	if err := ValidateAddress(req.Asset); err != nil {
		return fmt.Errorf("invalid requirement: asset %w", err)
	}
	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("invalid requirement: timeout cannot be negative: %d", req.MaxTimeoutSeconds)
	}
	if req.Extra != nil {
		if name, ok := req.Extra["name"].(string); ok && name == "" {
			return fmt.Errorf("invalid requirement: EIP-3009 name cannot be empty")
		}
		if version, ok := req.Extra["version"].(string); ok && version == "" {
			return fmt.Errorf("invalid requirement: EIP-3009 version cannot be empty")
		}
	}
	return nil
}

// ValidatePaymentPayload checks that a decoded payment is in canonical form:
// 0x-prefixed addresses and 32-byte hex nonce, r and s. Version, amount and
// time window are policy and are left to the verify package.
func ValidatePaymentPayload(payment x402.PaymentPayload) error {
	if payment.Scheme == "" {
		return fmt.Errorf("scheme cannot be empty")
	}
	if payment.Network == "" {
		return fmt.Errorf("network cannot be empty")
	}

	p := payment.Payload
	if err := ValidateAddress(p.From); err != nil {
		return fmt.Errorf("payload from: %w", err)
	}
	if err := ValidateAddress(p.To); err != nil {
		return fmt.Errorf("payload to: %w", err)
	}
	if p.Value == "" {
		return fmt.Errorf("payload value cannot be empty")
	}
	if p.V != 27 && p.V != 28 {
		return fmt.Errorf("payload v must be 27 or 28, got %d", p.V)
	}
	for name, value := range map[string]string{"nonce": p.Nonce, "r": p.R, "s": p.S} {
		if b, err := hexutil.Decode(value); err != nil || len(b) != 32 {
			return fmt.Errorf("payload %s must be a 0x-prefixed 32-byte hex string", name)
		}
	}
	return nil
}
