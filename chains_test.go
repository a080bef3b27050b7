package x402

import (
	"errors"
	"strings"
	"testing"
)

func TestChainConfigConstants(t *testing.T) {
	tests := []struct {
		name   string
		config ChainConfig
	}{
		{"BaseMainnet", BaseMainnet},
		{"BaseSepolia", BaseSepolia},
		{"PolygonMainnet", PolygonMainnet},
		{"PolygonAmoy", PolygonAmoy},
		{"AvalancheMainnet", AvalancheMainnet},
		{"AvalancheFuji", AvalancheFuji},
		{"EthereumMainnet", EthereumMainnet},
		{"Sepolia", Sepolia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config.NetworkID == "" {
				t.Errorf("%s: NetworkID is empty", tt.name)
			}
			if tt.config.ChainID <= 0 {
				t.Errorf("%s: ChainID = %d, want positive", tt.name, tt.config.ChainID)
			}
			if !strings.HasPrefix(tt.config.USDCAddress, "0x") || len(tt.config.USDCAddress) != 42 {
				t.Errorf("%s: USDCAddress %q is not an EVM address", tt.name, tt.config.USDCAddress)
			}
			if tt.config.Decimals != 6 {
				t.Errorf("%s: Decimals = %d, want 6", tt.name, tt.config.Decimals)
			}
			if tt.config.EIP3009Name == "" || tt.config.EIP3009Version == "" {
				t.Errorf("%s: EIP-3009 domain is incomplete", tt.name)
			}
		})
	}
}

func TestLookupChain(t *testing.T) {
	chain, ok := LookupChain("base-sepolia")
	if !ok {
		t.Fatal("expected base-sepolia to be known")
	}
	if chain.ChainID != 84532 {
		t.Errorf("expected chain id 84532, got %d", chain.ChainID)
	}
	if chain.ChainIDBig().Int64() != 84532 {
		t.Errorf("ChainIDBig mismatch: %s", chain.ChainIDBig())
	}

	if _, ok := LookupChain("solana"); ok {
		t.Error("expected solana to be unknown")
	}
}

func TestValidateNetwork(t *testing.T) {
	tests := []struct {
		network string
		wantErr bool
	}{
		{"base", false},
		{"base-sepolia", false},
		{"polygon-amoy", false},
		{"", true},
		{"solana", true},
		{"BASE", true},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			err := ValidateNetwork(tt.network)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateNetwork(%q) error = %v, wantErr %v", tt.network, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidNetwork) {
				t.Errorf("expected ErrInvalidNetwork, got %v", err)
			}
		})
	}
}

func TestNewUSDCTokenConfig(t *testing.T) {
	token := NewUSDCTokenConfig(BaseSepolia, 2)
	if token.Address != BaseSepolia.USDCAddress {
		t.Errorf("expected address %s, got %s", BaseSepolia.USDCAddress, token.Address)
	}
	if token.Symbol != "USDC" || token.Decimals != 6 || token.Priority != 2 {
		t.Errorf("unexpected token config: %+v", token)
	}
	if token.Name != "USDC" || token.Version != "2" {
		t.Errorf("expected domain USDC/2, got %s/%s", token.Name, token.Version)
	}
}
