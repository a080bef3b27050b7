// Package x402 holds the protocol data model, error taxonomy, chain table and the
// requirement builder shared by the server-side gate and the client-side signer.
package x402

import (
	"fmt"
	"math/big"
)

// ChainConfig contains chain-specific configuration for USDC and EIP-3009 domains.
type ChainConfig struct {
	// NetworkID is the x402 network identifier (e.g., "base").
	NetworkID string

	// ChainID is the EIP-155 chain id used in the EIP-712 domain.
	ChainID int64

	// USDCAddress is the Circle USDC contract address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals uint8

	// EIP3009Name is the EIP-712 domain "name" of the USDC contract.
	EIP3009Name string

	// EIP3009Version is the EIP-712 domain "version" of the USDC contract.
	EIP3009Version string
}

// ChainIDBig returns the chain id as a *big.Int.
func (c ChainConfig) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

// Mainnet chain configurations
var (
	BaseMainnet = ChainConfig{
		NetworkID:      "base",
		ChainID:        8453,
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	PolygonMainnet = ChainConfig{
		NetworkID:      "polygon",
		ChainID:        137,
		USDCAddress:    "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	AvalancheMainnet = ChainConfig{
		NetworkID:      "avalanche",
		ChainID:        43114,
		USDCAddress:    "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	EthereumMainnet = ChainConfig{
		NetworkID:      "ethereum",
		ChainID:        1,
		USDCAddress:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}
)

// Testnet chain configurations
var (
	// BaseSepolia USDC domain parameters were read from the contract.
	BaseSepolia = ChainConfig{
		NetworkID:      "base-sepolia",
		ChainID:        84532,
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	PolygonAmoy = ChainConfig{
		NetworkID:      "polygon-amoy",
		ChainID:        80002,
		USDCAddress:    "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	AvalancheFuji = ChainConfig{
		NetworkID:      "avalanche-fuji",
		ChainID:        43113,
		USDCAddress:    "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	Sepolia = ChainConfig{
		NetworkID:      "sepolia",
		ChainID:        11155111,
		USDCAddress:    "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}
)

var chainsByNetwork = map[string]ChainConfig{
	BaseMainnet.NetworkID:      BaseMainnet,
	PolygonMainnet.NetworkID:   PolygonMainnet,
	AvalancheMainnet.NetworkID: AvalancheMainnet,
	EthereumMainnet.NetworkID:  EthereumMainnet,
	BaseSepolia.NetworkID:      BaseSepolia,
	PolygonAmoy.NetworkID:      PolygonAmoy,
	AvalancheFuji.NetworkID:    AvalancheFuji,
	Sepolia.NetworkID:          Sepolia,
}

// LookupChain returns the ChainConfig registered for a network identifier.
func LookupChain(networkID string) (ChainConfig, bool) {
	c, ok := chainsByNetwork[networkID]
	return c, ok
}

// ValidateNetwork returns an error wrapping ErrInvalidNetwork if networkID is not known.
func ValidateNetwork(networkID string) error {
	if networkID == "" {
		return fmt.Errorf("%w: networkID cannot be empty", ErrInvalidNetwork)
	}
	if _, ok := chainsByNetwork[networkID]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNetwork, networkID)
	}
	return nil
}

// NewUSDCTokenConfig creates a TokenConfig for USDC on the given chain with the specified priority.
func NewUSDCTokenConfig(chain ChainConfig, priority int) TokenConfig {
	return TokenConfig{
		Address:  chain.USDCAddress,
		Symbol:   "USDC",
		Decimals: int(chain.Decimals),
		Priority: priority,
		Name:     chain.EIP3009Name,
		Version:  chain.EIP3009Version,
	}
}
