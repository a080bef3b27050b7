package x402

import "strings"

const (
	// DefaultMaxTimeoutSeconds is used when a route does not set MaxTimeoutSeconds.
	DefaultMaxTimeoutSeconds = 300

	// DefaultMimeType is used when a route does not set MimeType.
	DefaultMimeType = "application/json"
)

// RouteConfig is the immutable pricing configuration of a single protected route.
type RouteConfig struct {
	// Amount is the price in the asset's atomic units as a base-10 integer string.
	Amount string `validate:"required,atomic"`

	// Asset is the token contract address.
	Asset string `validate:"required,eth_addr"`

	// Network is the x402 network identifier.
	Network string `validate:"required,network"`

	// PayTo is the merchant address receiving the payment.
	PayTo string `validate:"required,eth_addr"`

	// Description is an optional human-readable description of the resource.
	Description string

	// MaxTimeoutSeconds is the validity period advertised to clients (default 300).
	MaxTimeoutSeconds int `validate:"gte=0"`

	// MimeType is the content type of the resource (default application/json).
	MimeType string

	// TokenName and TokenVersion override the EIP-712 domain of the asset.
	// When empty they are taken from the chain table.
	TokenName    string
	TokenVersion string
}

// TokenDomain returns the EIP-712 domain name and version for the route's asset.
// The chain table fills in missing values only when the asset is the chain's USDC.
func (r RouteConfig) TokenDomain() (name, version string) {
	name, version = r.TokenName, r.TokenVersion
	if chain, ok := LookupChain(r.Network); ok && strings.EqualFold(chain.USDCAddress, r.Asset) {
		if name == "" {
			name = chain.EIP3009Name
		}
		if version == "" {
			version = chain.EIP3009Version
		}
	}
	return name, version
}

// BuildRequirement produces the PaymentRequirement for a route and an absolute resource URL.
// It has no side effects and no time-dependent fields.
func BuildRequirement(resource string, route RouteConfig) PaymentRequirement {
	timeout := route.MaxTimeoutSeconds
	if timeout == 0 {
		timeout = DefaultMaxTimeoutSeconds
	}
	mimeType := route.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	req := PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           route.Network,
		MaxAmountRequired: route.Amount,
		Asset:             route.Asset,
		PayTo:             route.PayTo,
		Resource:          resource,
		Description:       route.Description,
		MimeType:          mimeType,
		MaxTimeoutSeconds: timeout,
	}

	if name, version := route.TokenDomain(); name != "" {
		req.Extra = map[string]interface{}{
			"name":    name,
			"version": version,
		}
	}

	return req
}

// NewRequirementsResponse wraps a requirement in the x402 requirement envelope.
func NewRequirementsResponse(req PaymentRequirement) PaymentRequirementsResponse {
	return PaymentRequirementsResponse{
		X402Version: X402Version,
		Accepts:     []PaymentRequirement{req},
	}
}

// NewUSDCRoute builds a RouteConfig for USDC on chain with a human-readable price
// such as "0.05".
func NewUSDCRoute(chain ChainConfig, price, payTo string) (RouteConfig, error) {
	amount, err := AmountToAtomic(price, int32(chain.Decimals))
	if err != nil {
		return RouteConfig{}, err
	}
	return RouteConfig{
		Amount:       amount,
		Asset:        chain.USDCAddress,
		Network:      chain.NetworkID,
		PayTo:        payTo,
		TokenName:    chain.EIP3009Name,
		TokenVersion: chain.EIP3009Version,
	}, nil
}

// DomainFromRequirement reads the EIP-712 domain from a requirement's Extra field,
// falling back to the chain table.
func DomainFromRequirement(req PaymentRequirement) (name, version string) {
	if req.Extra != nil {
		name, _ = req.Extra["name"].(string)
		version, _ = req.Extra["version"].(string)
	}
	if chain, ok := LookupChain(req.Network); ok && strings.EqualFold(chain.USDCAddress, req.Asset) {
		if name == "" {
			name = chain.EIP3009Name
		}
		if version == "" {
			version = chain.EIP3009Version
		}
	}
	return name, version
}
