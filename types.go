package x402

// X402Version is the protocol version spoken by this module.
const X402Version = 1

// SchemeExact is the only payment scheme supported: pay exactly the required amount.
const SchemeExact = "exact"

// PaymentHeader carries the base64-encoded PaymentPayload on requests.
const PaymentHeader = "X-PAYMENT"

// PaymentResponseHeader carries the base64-encoded SettlementResponse on granted responses.
const PaymentResponseHeader = "X-PAYMENT-RESPONSE"

// PaymentRequirement describes the payment a protected resource demands.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier ("exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier (e.g., "base-sepolia").
	Network string `json:"network"`

	// MaxAmountRequired is the payment amount in atomic units as a base-10 integer string.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Asset is the token contract address.
	Asset string `json:"asset"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// Resource is the absolute URL of the protected resource.
	Resource string `json:"resource"`

	// Description is a human-readable payment description.
	Description string `json:"description"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType,omitempty"`

	// MaxTimeoutSeconds is the validity period the server expects for the authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Extra carries the EIP-712 domain "name" and "version" of the asset.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirementsResponse is the requirement envelope returned with 402 responses.
type PaymentRequirementsResponse struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Error is an optional human-readable error message.
	Error string `json:"error,omitempty"`

	// Accepts lists the payment options the server will accept.
	Accepts []PaymentRequirement `json:"accepts"`
}

// PaymentPayload is the signed authorization a client sends in the X-PAYMENT header.
type PaymentPayload struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier ("exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`

	// Payload contains the EIP-3009 authorization and its split signature.
	Payload ExactEVMPayload `json:"payload"`
}

// ExactEVMPayload is an EIP-3009 transferWithAuthorization with its (v, r, s) signature.
type ExactEVMPayload struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units as a base-10 integer string.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp (seconds) from which the authorization is valid.
	ValidAfter int64 `json:"validAfter"`

	// ValidBefore is the unix timestamp (seconds) until which the authorization is valid.
	ValidBefore int64 `json:"validBefore"`

	// Nonce is a unique 0x-prefixed 32-byte hex string.
	Nonce string `json:"nonce"`

	// V is the signature recovery id (27 or 28).
	V uint8 `json:"v"`

	// R is the 0x-prefixed 32-byte hex r value of the signature.
	R string `json:"r"`

	// S is the 0x-prefixed 32-byte hex s value of the signature.
	S string `json:"s"`
}

// VerificationResult is the outcome of checking a payment against a requirement.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Payer  string `json:"payer,omitempty"`
	TxHash string `json:"txHash,omitempty"`
}

// SettlementResponse represents the outcome of settling a verified payment.
type SettlementResponse struct {
	// Success indicates whether the payment was settled.
	Success bool `json:"success"`

	// ErrorReason provides details if the payment failed.
	ErrorReason string `json:"errorReason,omitempty"`

	// Transaction is the confirmed transaction hash, or a derived id in simulated mode.
	Transaction string `json:"transaction"`

	// Network is the network the payment was settled on.
	Network string `json:"network"`

	// Payer is the address that made the payment.
	Payer string `json:"payer"`

	// Simulated is true when Transaction was derived locally rather than confirmed on-chain.
	Simulated bool `json:"simulated,omitempty"`
}

// TokenConfig represents configuration for a supported token.
type TokenConfig struct {
	// Address is the token contract address.
	Address string

	// Symbol is the token symbol (e.g., "USDC").
	Symbol string

	// Decimals is the number of decimal places for the token.
	Decimals int

	// Priority is the token's priority level within the signer.
	// Lower numbers indicate higher priority (1 > 2 > 3).
	Priority int

	// Name is the EIP-712 domain name of the token contract.
	Name string

	// Version is the EIP-712 domain version of the token contract.
	Version string
}
