// Package evm implements EIP-3009 transferWithAuthorization typed-data hashing,
// signing and signer recovery, and the client-side x402 signer built on it.
package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mark3labs/x402-gate"
)

// Signer implements the x402.Signer interface for EVM-compatible chains.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	network    string
	chainID    *big.Int
	tokens     []x402.TokenConfig
	priority   int
	maxAmount  *big.Int
	skew       time.Duration
	ttl        time.Duration
	clock      x402.Clock
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new EVM signer with the given options.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{
		skew:  DefaultValiditySkew,
		ttl:   DefaultValidityTTL,
		clock: x402.SystemClock{},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, x402.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}

	if s.chainID == nil {
		chain, ok := x402.LookupChain(s.network)
		if !ok {
			return nil, fmt.Errorf("%w: no chain id known for %s, use WithChainID", x402.ErrInvalidNetwork, s.network)
		}
		s.chainID = chain.ChainIDBig()
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithECDSAKey sets an already parsed private key.
func WithECDSAKey(key *ecdsa.PrivateKey) SignerOption {
	return func(s *Signer) error {
		if key == nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = key
		return nil
	}
}

// WithNetwork sets the blockchain network.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithChainID overrides the chain id taken from the chain table.
func WithChainID(chainID int64) SignerOption {
	return func(s *Signer) error {
		if chainID <= 0 {
			return fmt.Errorf("%w: chain id must be positive", x402.ErrInvalidNetwork)
		}
		s.chainID = big.NewInt(chainID)
		return nil
	}
}

// WithToken adds a token configuration.
func WithToken(address, symbol string, decimals int) SignerOption {
	return WithTokenPriority(address, symbol, decimals, 0)
}

// WithTokenPriority adds a token configuration with a priority.
func WithTokenPriority(address, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: invalid token address %q", x402.ErrInvalidRequirements, address)
		}
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: priority,
		})
		return nil
	}
}

// WithUSDC adds the chain's USDC token, including its EIP-712 domain, and sets the network.
func WithUSDC(chain x402.ChainConfig) SignerOption {
	return func(s *Signer) error {
		s.network = chain.NetworkID
		s.tokens = append(s.tokens, x402.NewUSDCTokenConfig(chain, 0))
		return nil
	}
}

// WithPriority sets the signer priority.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmountPerCall sets the maximum amount per payment call.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		maxAmount, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402.ErrInvalidAmount
		}
		s.maxAmount = maxAmount
		return nil
	}
}

// WithValidityWindow sets how far before and after now an authorization is valid.
func WithValidityWindow(skew, ttl time.Duration) SignerOption {
	return func(s *Signer) error {
		if skew < 0 || ttl <= 0 {
			return fmt.Errorf("%w: invalid validity window", x402.ErrInvalidConfig)
		}
		s.skew = skew
		s.ttl = ttl
		return nil
	}
}

// WithClock sets the clock used for validity windows.
func WithClock(clock x402.Clock) SignerOption {
	return func(s *Signer) error {
		s.clock = clock
		return nil
	}
}

// Network implements x402.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402.Signer.
func (s *Signer) Scheme() string {
	return x402.SchemeExact
}

// CanSign implements x402.Signer.
func (s *Signer) CanSign(requirements *x402.PaymentRequirement) bool {
	if requirements.Network != s.network || requirements.Scheme != x402.SchemeExact {
		return false
	}
	_, ok := s.token(requirements.Asset)
	return ok
}

// Sign implements x402.Signer.
func (s *Signer) Sign(requirements *x402.PaymentRequirement) (*x402.PaymentPayload, error) {
	if !s.CanSign(requirements) {
		return nil, x402.ErrNoValidSigner
	}

	name, version := x402.DomainFromRequirement(*requirements)
	return s.Authorize(AuthorizationParams{
		To:           requirements.PayTo,
		Value:        requirements.MaxAmountRequired,
		Network:      requirements.Network,
		Asset:        requirements.Asset,
		TokenName:    name,
		TokenVersion: version,
	})
}

// AuthorizationParams describes a payment to authorize.
type AuthorizationParams struct {
	To      string
	Value   string
	Network string
	Asset   string

	// TokenName and TokenVersion are the asset's EIP-712 domain. When empty they
	// come from the matching token configuration.
	TokenName    string
	TokenVersion string
}

// Authorize creates and signs an EIP-3009 authorization from the signer's address
// and returns the full payment envelope.
func (s *Signer) Authorize(params AuthorizationParams) (*x402.PaymentPayload, error) {
	if params.Network != s.network {
		return nil, fmt.Errorf("%w: signer is configured for %s, not %s", x402.ErrInvalidNetwork, s.network, params.Network)
	}
	if !common.IsHexAddress(params.To) {
		return nil, fmt.Errorf("%w: invalid recipient %q", x402.ErrInvalidRequirements, params.To)
	}
	if !common.IsHexAddress(params.Asset) {
		return nil, fmt.Errorf("%w: invalid asset %q", x402.ErrInvalidRequirements, params.Asset)
	}

	amount, ok := new(big.Int).SetString(params.Value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, x402.ErrInvalidAmount
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeAmountExceeded, "payment exceeds per-call limit", x402.ErrAmountExceeded).
			WithDetails("amount", params.Value).
			WithDetails("limit", s.maxAmount.String())
	}

	name, version := params.TokenName, params.TokenVersion
	if token, ok := s.token(params.Asset); ok {
		if name == "" {
			name = token.Name
		}
		if version == "" {
			version = token.Version
		}
	}
	if name == "" || version == "" {
		return nil, fmt.Errorf("%w: EIP-712 domain of %s is unknown", x402.ErrInvalidRequirements, params.Asset)
	}

	auth, err := NewAuthorization(s.address, common.HexToAddress(params.To), amount, s.clock.Now(), s.skew, s.ttl)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to create authorization", err)
	}

	domain := Domain{
		Name:              name,
		Version:           version,
		ChainID:           s.chainID,
		VerifyingContract: common.HexToAddress(params.Asset),
	}
	v, r, sig, err := Sign(s.privateKey, domain, auth)
	if err != nil {
		return nil, err
	}

	return &x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      x402.SchemeExact,
		Network:     s.network,
		Payload:     auth.Payload(v, r, sig),
	}, nil
}

// GetPriority implements x402.Signer.
func (s *Signer) GetPriority() int {
	return s.priority
}

// GetTokens implements x402.Signer.
func (s *Signer) GetTokens() []x402.TokenConfig {
	return s.tokens
}

// GetMaxAmount implements x402.Signer.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain id used in the signing domain.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// token returns the configured token for an asset address, filling in the EIP-712
// domain from the chain table when the token is the chain's USDC.
func (s *Signer) token(asset string) (x402.TokenConfig, bool) {
	for _, token := range s.tokens {
		if !strings.EqualFold(token.Address, asset) {
			continue
		}
		if token.Name == "" {
			if chain, ok := x402.LookupChain(s.network); ok && strings.EqualFold(chain.USDCAddress, asset) {
				token.Name = chain.EIP3009Name
				token.Version = chain.EIP3009Version
			}
		}
		return token, true
	}
	return x402.TokenConfig{}, false
}
