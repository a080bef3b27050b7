package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/x402-gate"
)

const (
	testPayTo = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	testHash  = "0xf3746613c2d920b5fdabc0856f2aeb2d4f88ee6037b8cc5d04a71a4462f13480"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{name: "valid positive amount", amount: "10000"},
		{name: "valid large amount", amount: "999999999999999999999"},
		{name: "empty amount", amount: "", wantErr: true},
		{name: "zero amount", amount: "0", wantErr: true},
		{name: "negative amount", amount: "-100", wantErr: true},
		{name: "explicit plus sign", amount: "+100", wantErr: true},
		{name: "leading zero", amount: "050000", wantErr: true},
		{name: "letters", amount: "abc", wantErr: true},
		{name: "decimal", amount: "100.50", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%q) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		address string
		wantErr bool
	}{
		{address: testPayTo},
		{address: strings.ToLower(testPayTo)},
		{address: "", wantErr: true},
		{address: "209693Bc6afc0C5328bA36FaF03C514EF312287C", wantErr: true},
		{address: "0x1234", wantErr: true},
		{address: "0xZZ9693Bc6afc0C5328bA36FaF03C514EF312287C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

func validRoute() x402.RouteConfig {
	return x402.RouteConfig{
		Amount:  "50000",
		Asset:   x402.BaseSepolia.USDCAddress,
		Network: "base-sepolia",
		PayTo:   testPayTo,
	}
}

func TestValidateRoute(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *x402.RouteConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(r *x402.RouteConfig) {}},
		{name: "missing amount", mutate: func(r *x402.RouteConfig) { r.Amount = "" }, wantErr: "Amount"},
		{name: "decimal amount", mutate: func(r *x402.RouteConfig) { r.Amount = "0.05" }, wantErr: "Amount"},
		{name: "bad asset", mutate: func(r *x402.RouteConfig) { r.Asset = "usdc" }, wantErr: "Asset"},
		{name: "unknown network", mutate: func(r *x402.RouteConfig) { r.Network = "solana" }, wantErr: "Network"},
		{name: "bad payTo", mutate: func(r *x402.RouteConfig) { r.PayTo = "0xMerchant" }, wantErr: "PayTo"},
		{name: "negative timeout", mutate: func(r *x402.RouteConfig) { r.MaxTimeoutSeconds = -1 }, wantErr: "MaxTimeoutSeconds"},
		{
			name: "unknown token without domain",
			mutate: func(r *x402.RouteConfig) {
				r.Asset = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
			},
			wantErr: "EIP-712 domain",
		},
		{
			name: "unknown token with explicit domain",
			mutate: func(r *x402.RouteConfig) {
				r.Asset = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
				r.TokenName = "Dai Stablecoin"
				r.TokenVersion = "1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := validRoute()
			tt.mutate(&route)
			err := ValidateRoute(route)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, x402.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePaymentRequirement(t *testing.T) {
	valid := x402.BuildRequirement("https://api.example.com/jobs", validRoute())
	if err := ValidatePaymentRequirement(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := valid
	bad.Scheme = "upto"
	if err := ValidatePaymentRequirement(bad); err == nil {
		t.Error("expected error for unsupported scheme")
	}

	bad = valid
	bad.Extra = map[string]interface{}{"name": "", "version": "2"}
	if err := ValidatePaymentRequirement(bad); err == nil {
		t.Error("expected error for empty EIP-3009 name")
	}
}

func TestValidatePaymentPayload(t *testing.T) {
	valid := x402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload: x402.ExactEVMPayload{
			From:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			To:          testPayTo,
			Value:       "50000",
			ValidAfter:  1700000000,
			ValidBefore: 1700003600,
			Nonce:       testHash,
			V:           27,
			R:           testHash,
			S:           testHash,
		},
	}
	if err := ValidatePaymentPayload(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Policy fields are checked by the verifier, not here.
	policy := valid
	policy.X402Version = 2
	policy.Payload.Value = "050000"
	policy.Payload.ValidBefore = policy.Payload.ValidAfter
	if err := ValidatePaymentPayload(policy); err != nil {
		t.Errorf("expected policy fields to pass shape validation, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *x402.PaymentPayload)
	}{
		{"scheme", func(p *x402.PaymentPayload) { p.Scheme = "" }},
		{"network", func(p *x402.PaymentPayload) { p.Network = "" }},
		{"from", func(p *x402.PaymentPayload) { p.Payload.From = "alice" }},
		{"unprefixed from", func(p *x402.PaymentPayload) { p.Payload.From = p.Payload.From[2:] }},
		{"unprefixed to", func(p *x402.PaymentPayload) { p.Payload.To = p.Payload.To[2:] }},
		{"value", func(p *x402.PaymentPayload) { p.Payload.Value = "" }},
		{"v", func(p *x402.PaymentPayload) { p.Payload.V = 1 }},
		{"nonce", func(p *x402.PaymentPayload) { p.Payload.Nonce = "0x1234" }},
		{"r", func(p *x402.PaymentPayload) { p.Payload.R = testHash[2:] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := ValidatePaymentPayload(p); err == nil {
				t.Errorf("expected error after changing %s", tt.name)
			}
		})
	}
}
