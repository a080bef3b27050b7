// Package verify checks a decoded x402 payment against the requirement of the
// route it targets. Checks run in a fixed order and stop at the first failure:
// protocol version, scheme, network, amount, recipient, validity window and
// finally the EIP-712 signature.
package verify

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/evm"
)

// Rejection reasons reported in VerificationResult.Reason.
const (
	ReasonUnsupportedVersion = "Unsupported x402 version"
	ReasonUnsupportedScheme  = "Unsupported scheme"
	ReasonNetworkMismatch    = "Network mismatch"
	ReasonAmountMismatch     = "Amount mismatch"
	ReasonRecipientMismatch  = "Recipient mismatch"
	ReasonNotYetValid        = "Authorization not yet valid"
	ReasonExpired            = "Authorization expired"
	ReasonInvalidPayload     = "Invalid authorization payload"
	ReasonUnknownChain       = "Unknown chain id for network"
	ReasonUnknownDomain      = "Unknown token domain"
	ReasonBadSignature       = "signature verification failed"
)

// ChainIDProvider resolves the EIP-155 chain id used in the signing domain.
type ChainIDProvider interface {
	ChainID(network string) (*big.Int, error)
}

// StaticChainID returns the same chain id for every network. Use it when the
// verifier is bound to a single configured chain.
type StaticChainID int64

// ChainID implements ChainIDProvider.
func (c StaticChainID) ChainID(string) (*big.Int, error) {
	return big.NewInt(int64(c)), nil
}

type chainTable struct{}

func (chainTable) ChainID(network string) (*big.Int, error) {
	chain, ok := x402.LookupChain(network)
	if !ok {
		return nil, fmt.Errorf("%w: %s", x402.ErrInvalidNetwork, network)
	}
	return chain.ChainIDBig(), nil
}

// ChainIDFromNetwork resolves chain ids from the built-in chain table.
func ChainIDFromNetwork() ChainIDProvider {
	return chainTable{}
}

// Verifier checks payments. It holds no per-request state and is safe for
// concurrent use.
type Verifier struct {
	clock    x402.Clock
	chainIDs ChainIDProvider
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the clock used for the validity window check.
func WithClock(clock x402.Clock) Option {
	return func(v *Verifier) {
		v.clock = clock
	}
}

// WithChainIDProvider sets how chain ids are resolved.
func WithChainIDProvider(p ChainIDProvider) Option {
	return func(v *Verifier) {
		v.chainIDs = p
	}
}

// New creates a Verifier using the system clock and the built-in chain table
// unless overridden.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		clock:    x402.SystemClock{},
		chainIDs: ChainIDFromNetwork(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Clock returns the clock used for the validity window check.
func (v *Verifier) Clock() x402.Clock {
	return v.clock
}

func invalid(reason string) x402.VerificationResult {
	return x402.VerificationResult{Valid: false, Reason: reason}
}

// Verify checks payment against requirement. Expected rejections are reported
// through the result, never as errors.
func (v *Verifier) Verify(payment x402.PaymentPayload, requirement x402.PaymentRequirement) x402.VerificationResult {
	if payment.X402Version != x402.X402Version {
		return invalid(ReasonUnsupportedVersion)
	}
	if payment.Scheme != x402.SchemeExact {
		return invalid(ReasonUnsupportedScheme)
	}
	if payment.Network != requirement.Network {
		return invalid(ReasonNetworkMismatch)
	}

	p := payment.Payload

	// Exact string comparison: "050000" and "50000.0" are not 50000.
	if p.Value != requirement.MaxAmountRequired {
		return invalid(ReasonAmountMismatch)
	}
	if !strings.EqualFold(p.To, requirement.PayTo) {
		return invalid(ReasonRecipientMismatch)
	}

	now := v.clock.Now().Unix()
	if now < p.ValidAfter {
		return invalid(ReasonNotYetValid)
	}
	if now > p.ValidBefore {
		return invalid(ReasonExpired)
	}

	auth, err := evm.ParseAuthorization(p)
	if err != nil {
		return invalid(ReasonInvalidPayload)
	}
	sigV, r, s, err := evm.ParseSignature(p)
	if err != nil {
		return invalid(ReasonBadSignature)
	}

	chainID, err := v.chainIDs.ChainID(requirement.Network)
	if err != nil {
		return invalid(ReasonUnknownChain)
	}
	name, version := x402.DomainFromRequirement(requirement)
	if name == "" || version == "" {
		return invalid(ReasonUnknownDomain)
	}
	if !common.IsHexAddress(requirement.Asset) {
		return invalid(ReasonUnknownDomain)
	}

	domain := evm.Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(requirement.Asset),
	}
	signer, err := evm.Recover(domain, auth, sigV, r, s)
	if err != nil || signer != auth.From {
		return invalid(ReasonBadSignature)
	}

	return x402.VerificationResult{Valid: true, Payer: signer.Hex()}
}
