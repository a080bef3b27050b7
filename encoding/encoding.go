// Package encoding provides utilities for encoding and decoding x402 payment data.
// It handles base64 and JSON marshaling for payment payloads, settlements, and requirements.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/x402-gate"
)

// requiredPaymentKeys must all be present in a decoded X-PAYMENT document.
var requiredPaymentKeys = []string{"x402Version", "scheme", "network", "payload"}

// EncodePayment converts a PaymentPayload to base64-encoded JSON string.
// This is used for HTTP X-PAYMENT headers.
func EncodePayment(payment x402.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts a base64-encoded JSON string to PaymentPayload.
//
// Every failure wraps x402.ErrMalformedHeader: invalid base64, invalid JSON, or a
// document missing any of x402Version, scheme, network and payload. Callers are
// expected to have handled the absent-header case before calling DecodePayment.
func DecodePayment(encoded string) (x402.PaymentPayload, error) {
	var payment x402.PaymentPayload

	decoded, err := decodeBase64(encoded)
	if err != nil {
		return payment, fmt.Errorf("%w: failed to decode base64: %v", x402.ErrMalformedHeader, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(decoded, &fields); err != nil {
		return payment, fmt.Errorf("%w: failed to unmarshal payment: %v", x402.ErrMalformedHeader, err)
	}
	for _, key := range requiredPaymentKeys {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return payment, fmt.Errorf("%w: missing %s", x402.ErrMalformedHeader, key)
		}
	}

	if err := json.Unmarshal(decoded, &payment); err != nil {
		return payment, fmt.Errorf("%w: failed to unmarshal payment: %v", x402.ErrMalformedHeader, err)
	}

	return payment, nil
}

// EncodeSettlement converts a SettlementResponse to base64-encoded JSON string.
// This is used for HTTP X-PAYMENT-RESPONSE headers.
func EncodeSettlement(settlement x402.SettlementResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts a base64-encoded JSON string to SettlementResponse.
func DecodeSettlement(encoded string) (x402.SettlementResponse, error) {
	var settlement x402.SettlementResponse

	decoded, err := decodeBase64(encoded)
	if err != nil {
		return settlement, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}

	return settlement, nil
}

// EncodeRequirements converts PaymentRequirementsResponse to base64-encoded JSON.
func EncodeRequirements(requirements x402.PaymentRequirementsResponse) (string, error) {
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return "", fmt.Errorf("failed to marshal requirements: %w", err)
	}
	return base64.StdEncoding.EncodeToString(reqJSON), nil
}

// DecodeRequirements converts base64-encoded JSON to PaymentRequirementsResponse.
func DecodeRequirements(encoded string) (x402.PaymentRequirementsResponse, error) {
	var requirements x402.PaymentRequirementsResponse

	decoded, err := decodeBase64(encoded)
	if err != nil {
		return requirements, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &requirements); err != nil {
		return requirements, fmt.Errorf("failed to unmarshal requirements: %w", err)
	}

	return requirements, nil
}

// CanonicalJSON serializes v with object keys sorted and no insignificant whitespace.
// Two values that are equal as JSON documents always produce identical bytes.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("empty input")
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(encoded)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
