package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/mark3labs/x402-gate"
)

const (
	// DefaultValiditySkew is subtracted from now for validAfter to absorb clock drift
	// between client and server.
	DefaultValiditySkew = 60 * time.Second

	// DefaultValidityTTL is added to now for validBefore.
	DefaultValidityTTL = time.Hour
)

const primaryType = "TransferWithAuthorization"

var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: []apitypes.Type{
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// Domain is the EIP-712 signing domain of an EIP-3009 token contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Authorization holds the parameters of an EIP-3009 transferWithAuthorization.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       common.Hash
}

// NewAuthorization creates an authorization with a fresh nonce valid over
// [now-skew, now+ttl].
func NewAuthorization(from, to common.Address, value *big.Int, now time.Time, skew, ttl time.Duration) (*Authorization, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	unix := now.Unix()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       new(big.Int).Set(value),
		ValidAfter:  big.NewInt(unix - int64(skew/time.Second)),
		ValidBefore: big.NewInt(unix + int64(ttl/time.Second)),
		Nonce:       nonce,
	}, nil
}

// ParseAuthorization converts the wire form of an authorization into typed values.
func ParseAuthorization(p x402.ExactEVMPayload) (*Authorization, error) {
	if !common.IsHexAddress(p.From) {
		return nil, fmt.Errorf("invalid from address %q", p.From)
	}
	if !common.IsHexAddress(p.To) {
		return nil, fmt.Errorf("invalid to address %q", p.To)
	}
	value, ok := new(big.Int).SetString(p.Value, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", p.Value)
	}
	nonce, err := parseBytes32(p.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}

	return &Authorization{
		From:        common.HexToAddress(p.From),
		To:          common.HexToAddress(p.To),
		Value:       value,
		ValidAfter:  big.NewInt(p.ValidAfter),
		ValidBefore: big.NewInt(p.ValidBefore),
		Nonce:       nonce,
	}, nil
}

// Payload returns the wire form of the authorization with its split signature.
// Addresses are rendered in EIP-55 checksum form.
func (a *Authorization) Payload(v uint8, r, s common.Hash) x402.ExactEVMPayload {
	return x402.ExactEVMPayload{
		From:        a.From.Hex(),
		To:          a.To.Hex(),
		Value:       a.Value.String(),
		ValidAfter:  a.ValidAfter.Int64(),
		ValidBefore: a.ValidBefore.Int64(),
		Nonce:       a.Nonce.Hex(),
		V:           v,
		R:           r.Hex(),
		S:           s.Hex(),
	}
}

// TypedData builds the EIP-712 typed data for a transferWithAuthorization.
// Addresses are lower-cased; hashing is insensitive to the checksum casing.
func TypedData(domain Domain, auth *Authorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: strings.ToLower(domain.VerifyingContract.Hex()),
		},
		Message: apitypes.TypedDataMessage{
			"from":        strings.ToLower(auth.From.Hex()),
			"to":          strings.ToLower(auth.To.Hex()),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       auth.Nonce.Hex(),
		},
	}
}

// Digest returns keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func Digest(domain Domain, auth *Authorization) ([]byte, error) {
	if domain.ChainID == nil {
		return nil, fmt.Errorf("domain chain id is required")
	}
	typedData := TypedData(domain, auth)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct(primaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// Sign signs the authorization and splits the signature into (v, r, s) with v in {27, 28}.
func Sign(privateKey *ecdsa.PrivateKey, domain Domain, auth *Authorization) (v uint8, r, s common.Hash, err error) {
	digest, err := Digest(domain, auth)
	if err != nil {
		return 0, r, s, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to hash authorization", err)
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return 0, r, s, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to sign authorization", err)
	}

	copy(r[:], signature[0:32])
	copy(s[:], signature[32:64])
	return signature[64] + 27, r, s, nil
}

// Recover returns the address that produced the (v, r, s) signature over the authorization.
// v may be given as 27/28 or 0/1.
func Recover(domain Domain, auth *Authorization, v uint8, r, s common.Hash) (common.Address, error) {
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", v)
	}

	digest, err := Digest(domain, auth)
	if err != nil {
		return common.Address{}, err
	}

	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ParseSignature decodes the 0x-prefixed r and s components of a payload.
func ParseSignature(p x402.ExactEVMPayload) (v uint8, r, s common.Hash, err error) {
	if r, err = parseBytes32(p.R); err != nil {
		return 0, r, s, fmt.Errorf("invalid r: %w", err)
	}
	if s, err = parseBytes32(p.S); err != nil {
		return 0, r, s, fmt.Errorf("invalid s: %w", err)
	}
	return p.V, r, s, nil
}

// GenerateNonce generates a cryptographically secure 32-byte random nonce.
func GenerateNonce() (common.Hash, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(nonce[:]), nil
}

func parseBytes32(value string) (common.Hash, error) {
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return common.Hash{}, fmt.Errorf("missing 0x prefix")
	}
	b, err := hex.DecodeString(value[2:])
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != 32 {
		return common.Hash{}, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return common.BytesToHash(b), nil
}
