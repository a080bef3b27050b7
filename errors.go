package x402

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidSigner indicates that no configured signer can satisfy the requirements.
	ErrNoValidSigner = errors.New("x402: no signer can satisfy payment requirements")

	// ErrAmountExceeded indicates the payment exceeds a signer's per-call limit.
	ErrAmountExceeded = errors.New("x402: payment amount exceeds per-call limit")

	// ErrInvalidRequirements indicates the server sent unusable payment requirements.
	ErrInvalidRequirements = errors.New("x402: invalid payment requirements")

	// ErrSigningFailed indicates the authorization could not be signed.
	ErrSigningFailed = errors.New("x402: payment signing failed")

	// ErrInvalidAmount indicates an amount that is not a valid atomic or decimal value.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrInvalidKey indicates a missing or malformed private key.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrInvalidNetwork indicates an unknown or unsupported network.
	ErrInvalidNetwork = errors.New("x402: invalid or unsupported network")

	// ErrInvalidKeystore indicates a keystore file that cannot be read or decrypted.
	ErrInvalidKeystore = errors.New("x402: invalid keystore file")

	// ErrInvalidMnemonic indicates an invalid BIP-39 mnemonic.
	ErrInvalidMnemonic = errors.New("x402: invalid mnemonic phrase")

	// ErrNoTokens indicates a signer with no configured tokens.
	ErrNoTokens = errors.New("x402: no tokens configured")

	// ErrInvalidConfig indicates an invalid route or middleware configuration.
	ErrInvalidConfig = errors.New("x402: invalid configuration")

	// ErrFacilitatorUnavailable indicates a remote facilitator could not be reached.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator service unavailable")

	// ErrVerificationFailed indicates verification could not be performed.
	ErrVerificationFailed = errors.New("x402: payment verification failed")

	// ErrMalformedHeader indicates that the X-PAYMENT header could not be decoded.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")

	// ErrUnsupportedScheme indicates an unsupported payment scheme.
	ErrUnsupportedScheme = errors.New("x402: unsupported payment scheme")

	// ErrNonceReused indicates an authorization nonce that was already accepted.
	ErrNonceReused = errors.New("x402: authorization nonce already used")

	// ErrSettlementFailed indicates that on-chain settlement failed.
	ErrSettlementFailed = errors.New("x402: payment settlement failed")

	// ErrTimeout indicates the operation timed out.
	ErrTimeout = errors.New("x402: operation timed out")
)

// ErrorCode classifies a PaymentError.
type ErrorCode string

const (
	ErrCodeNoValidSigner       ErrorCode = "NO_VALID_SIGNER"
	ErrCodeAmountExceeded      ErrorCode = "AMOUNT_EXCEEDED"
	ErrCodeInvalidRequirements ErrorCode = "INVALID_REQUIREMENTS"
	ErrCodeSigningFailed       ErrorCode = "SIGNING_FAILED"
	ErrCodeNetworkError        ErrorCode = "NETWORK_ERROR"
	ErrCodeMalformedHeader     ErrorCode = "MALFORMED_HEADER"
	ErrCodeSettlementFailed    ErrorCode = "SETTLEMENT_FAILED"
)

// PaymentError is a structured error carrying a code, a message, optional details
// and the underlying cause.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

// NewPaymentError creates a PaymentError wrapping err.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// Error implements error.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// WithDetails adds a key/value detail and returns the error for chaining.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
