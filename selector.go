package x402

import (
	"math/big"
	"sort"
	"strings"
)

// PaymentSelector picks a requirement and a signer and produces a signed payment.
type PaymentSelector interface {
	SelectAndSign(requirements []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error)
}

// DefaultPaymentSelector selects by:
//  1. ability to satisfy the requirement (network, scheme and token match, within max amount)
//  2. signer priority (lower number first)
//  3. token priority within the signer
//  4. order of requirements and signers (for ties)
type DefaultPaymentSelector struct{}

// NewDefaultPaymentSelector creates a new DefaultPaymentSelector.
func NewDefaultPaymentSelector() *DefaultPaymentSelector {
	return &DefaultPaymentSelector{}
}

type signerCandidate struct {
	signer         Signer
	requirement    *PaymentRequirement
	signerPriority int
	tokenPriority  int
}

// SelectAndSign implements PaymentSelector.
func (s *DefaultPaymentSelector) SelectAndSign(requirements []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error) {
	if len(signers) == 0 {
		return nil, nil, NewPaymentError(ErrCodeNoValidSigner, "no signers configured", ErrNoValidSigner)
	}
	if len(requirements) == 0 {
		return nil, nil, NewPaymentError(ErrCodeInvalidRequirements, "no payment requirements offered", ErrInvalidRequirements)
	}

	var candidates []signerCandidate
	for i := range requirements {
		req := &requirements[i]
		amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
		if !ok {
			continue
		}

		for _, signer := range signers {
			if signer.Scheme() != req.Scheme || !signer.CanSign(req) {
				continue
			}
			if max := signer.GetMaxAmount(); max != nil && amount.Cmp(max) > 0 {
				continue
			}

			tokenPriority := 0
			for _, token := range signer.GetTokens() {
				if strings.EqualFold(token.Address, req.Asset) {
					tokenPriority = token.Priority
					break
				}
			}

			candidates = append(candidates, signerCandidate{
				signer:         signer,
				requirement:    req,
				signerPriority: signer.GetPriority(),
				tokenPriority:  tokenPriority,
			})
		}
	}

	if len(candidates) == 0 {
		first := requirements[0]
		return nil, nil, NewPaymentError(ErrCodeNoValidSigner, "no signer can satisfy requirements", ErrNoValidSigner).
			WithDetails("network", first.Network).
			WithDetails("asset", first.Asset).
			WithDetails("amount", first.MaxAmountRequired)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].signerPriority != candidates[j].signerPriority {
			return candidates[i].signerPriority < candidates[j].signerPriority
		}
		return candidates[i].tokenPriority < candidates[j].tokenPriority
	})

	selected := candidates[0]
	payment, err := selected.signer.Sign(selected.requirement)
	if err != nil {
		return nil, nil, NewPaymentError(ErrCodeSigningFailed, "failed to sign payment", err)
	}

	return payment, selected.requirement, nil
}
