package evm

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mark3labs/x402-gate"
)

// Test private key (DO NOT use in production)
const testPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func testDomain() Domain {
	return Domain{
		Name:              "USDC",
		Version:           "2",
		ChainID:           big.NewInt(84532),
		VerifyingContract: common.HexToAddress(x402.BaseSepolia.USDCAddress),
	}
}

func testAuthorization(t *testing.T) *Authorization {
	t.Helper()
	auth, err := NewAuthorization(
		testAddress,
		common.HexToAddress("0x209693Bc6afc0C5328bA36FaF03C514EF312287C"),
		big.NewInt(50000),
		time.Unix(1740672000, 0),
		DefaultValiditySkew,
		DefaultValidityTTL,
	)
	if err != nil {
		t.Fatalf("failed to create authorization: %v", err)
	}
	return auth
}

func TestNewAuthorization_Window(t *testing.T) {
	auth := testAuthorization(t)

	if auth.ValidAfter.Int64() != 1740672000-60 {
		t.Errorf("expected validAfter now-60, got %s", auth.ValidAfter)
	}
	if auth.ValidBefore.Int64() != 1740672000+3600 {
		t.Errorf("expected validBefore now+3600, got %s", auth.ValidBefore)
	}
	if auth.Nonce == (common.Hash{}) {
		t.Error("expected a non-zero nonce")
	}
}

func TestGenerateNonce(t *testing.T) {
	seen := make(map[common.Hash]bool)
	for i := 0; i < 100; i++ {
		nonce, err := GenerateNonce()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[nonce] {
			t.Fatalf("duplicate nonce %s", nonce.Hex())
		}
		seen[nonce] = true
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	auth := testAuthorization(t)

	v, r, s, err := Sign(key, testDomain(), auth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 27 && v != 28 {
		t.Errorf("expected v in {27, 28}, got %d", v)
	}

	recovered, err := Recover(testDomain(), auth, v, r, s)
	if err != nil {
		t.Fatalf("unexpected recover error: %v", err)
	}
	if recovered != testAddress {
		t.Errorf("expected %s, got %s", testAddress.Hex(), recovered.Hex())
	}

	// 0/1 recovery ids are accepted too.
	recovered, err = Recover(testDomain(), auth, v-27, r, s)
	if err != nil || recovered != testAddress {
		t.Errorf("expected recovery with raw v, got %s (%v)", recovered.Hex(), err)
	}
}

func TestRecover_DomainAndMessageBinding(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	auth := testAuthorization(t)
	v, r, s, err := Sign(key, testDomain(), auth)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		domain func(d *Domain)
		auth   func(a *Authorization)
	}{
		{"different chain", func(d *Domain) { d.ChainID = big.NewInt(8453) }, nil},
		{"different name", func(d *Domain) { d.Name = "USD Coin" }, nil},
		{"different version", func(d *Domain) { d.Version = "1" }, nil},
		{"different contract", func(d *Domain) { d.VerifyingContract = common.HexToAddress("0x01") }, nil},
		{"different value", nil, func(a *Authorization) { a.Value = big.NewInt(50001) }},
		{"different recipient", nil, func(a *Authorization) { a.To = testAddress }},
		{"different window", nil, func(a *Authorization) { a.ValidBefore = big.NewInt(a.ValidBefore.Int64() + 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain := testDomain()
			modified := *auth
			if tt.domain != nil {
				tt.domain(&domain)
			}
			if tt.auth != nil {
				tt.auth(&modified)
			}

			recovered, err := Recover(domain, &modified, v, r, s)
			if err == nil && recovered == testAddress {
				t.Error("expected recovery to yield a different address")
			}
		})
	}
}

func TestRecover_InvalidRecoveryID(t *testing.T) {
	if _, err := Recover(testDomain(), testAuthorization(t), 5, common.Hash{}, common.Hash{}); err == nil {
		t.Error("expected error for recovery id 5")
	}
}

func TestDigest_CaseInsensitiveAddresses(t *testing.T) {
	auth := testAuthorization(t)
	a, err := Digest(testDomain(), auth)
	if err != nil {
		t.Fatal(err)
	}

	lower := *auth
	lower.To = common.HexToAddress("0x209693bc6afc0c5328ba36faf03c514ef312287c")
	b, err := Digest(testDomain(), &lower)
	if err != nil {
		t.Fatal(err)
	}
	if common.BytesToHash(a) != common.BytesToHash(b) {
		t.Error("expected address casing not to affect the digest")
	}

	if _, err := Digest(Domain{Name: "USDC", Version: "2"}, auth); err == nil {
		t.Error("expected error for missing chain id")
	}
}

func TestParseAuthorization(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	auth := testAuthorization(t)
	v, r, s, err := Sign(key, testDomain(), auth)
	if err != nil {
		t.Fatal(err)
	}

	wire := auth.Payload(v, r, s)
	if wire.From != testAddress.Hex() {
		t.Errorf("expected checksummed from, got %s", wire.From)
	}

	parsed, err := ParseAuthorization(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Nonce != auth.Nonce || parsed.Value.Cmp(auth.Value) != 0 || parsed.ValidBefore.Cmp(auth.ValidBefore) != 0 {
		t.Errorf("parsed authorization differs: %+v vs %+v", parsed, auth)
	}

	pv, pr, ps, err := ParseSignature(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pv != v || pr != r || ps != s {
		t.Error("parsed signature differs from the original")
	}
}

func TestParseAuthorization_Invalid(t *testing.T) {
	valid := x402.ExactEVMPayload{
		From:  testAddress.Hex(),
		To:    "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Value: "50000",
		Nonce: "0xf3746613c2d920b5fdabc0856f2aeb2d4f88ee6037b8cc5d04a71a4462f13480",
	}
	if _, err := ParseAuthorization(valid); err != nil {
		t.Fatalf("expected valid fixture, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *x402.ExactEVMPayload)
	}{
		{"bad from", func(p *x402.ExactEVMPayload) { p.From = "0x123" }},
		{"bad to", func(p *x402.ExactEVMPayload) { p.To = "nope" }},
		{"decimal value", func(p *x402.ExactEVMPayload) { p.Value = "50000.0" }},
		{"negative value", func(p *x402.ExactEVMPayload) { p.Value = "-1" }},
		{"short nonce", func(p *x402.ExactEVMPayload) { p.Nonce = "0x1234" }},
		{"unprefixed nonce", func(p *x402.ExactEVMPayload) { p.Nonce = p.Nonce[2:] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if _, err := ParseAuthorization(p); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
