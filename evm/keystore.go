package evm

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mark3labs/x402-gate"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// WithKeystore loads the payer key from an encrypted Web3 Secret Storage file.
func WithKeystore(keystorePath, password string) SignerOption {
	return func(s *Signer) error {
		key, err := LoadKeystore(keystorePath, password)
		if err != nil {
			return err
		}
		s.privateKey = key
		return nil
	}
}

// LoadKeystore decrypts a Web3 Secret Storage file. It is also used by the
// settlement operator, which signs transactions rather than authorizations.
func LoadKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
	}

	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
	}
	return key.PrivateKey, nil
}

// WithMnemonic derives the payer key from a BIP-39 mnemonic at m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return x402.ErrInvalidMnemonic
		}

		key, err := deriveEthereumKey(bip39.NewSeed(mnemonic, ""), accountIndex)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}
		s.privateKey = key
		return nil
	}
}

// deriveEthereumKey walks the BIP-44 Ethereum path from a BIP-39 seed.
func deriveEthereumKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44, // purpose
		bip32.FirstHardenedChild + 60, // coin type
		bip32.FirstHardenedChild + 0,  // account
		0,                             // external chain
		index,
	}
	for _, child := range path {
		if key, err = key.NewChildKey(child); err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}
