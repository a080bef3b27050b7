package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/retry"
)

const transferWithAuthorizationABI = `[
  {
    "name": "transferWithAuthorization",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "from", "type": "address" },
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" },
      { "name": "validAfter", "type": "uint256" },
      { "name": "validBefore", "type": "uint256" },
      { "name": "nonce", "type": "bytes32" },
      { "name": "v", "type": "uint8" },
      { "name": "r", "type": "bytes32" },
      { "name": "s", "type": "bytes32" }
    ],
    "outputs": []
  }
]`

var tokenABI = mustParseABI(transferWithAuthorizationABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("settlement: invalid ABI: %v", err))
	}
	return parsed
}

// EthClient is the subset of *ethclient.Client used by EthBackend.
type EthClient interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EthBackend submits transfers from an operator account that pays gas.
// Operator nonces are assigned locally so that concurrent settlements only
// contend on the counter, not on submission or confirmation.
type EthBackend struct {
	client   EthClient
	operator *bind.TransactOpts

	mu          sync.Mutex
	nonce       uint64
	nonceLoaded bool
}

// NewEthBackend creates a backend signing with operatorKey for chainID.
func NewEthBackend(client EthClient, operatorKey *ecdsa.PrivateKey, chainID *big.Int) (*EthBackend, error) {
	if operatorKey == nil {
		return nil, x402.ErrInvalidKey
	}
	opts, err := bind.NewKeyedTransactorWithChainID(operatorKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return &EthBackend{client: client, operator: opts}, nil
}

// Operator returns the address paying gas for settlements.
func (b *EthBackend) Operator() common.Address {
	return b.operator.From
}

// SubmitTransfer implements Backend.
func (b *EthBackend) SubmitTransfer(ctx context.Context, transfer Transfer) (*types.Transaction, error) {
	data, err := PackTransfer(transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	nonce, err := b.nextNonce(ctx)
	if err != nil {
		return nil, err
	}

	opts := *b.operator
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)

	contract := bind.NewBoundContract(transfer.Token, tokenABI, b.client, b.client, b.client)
	tx, err := contract.RawTransact(&opts, data)
	if err != nil {
		b.resyncNonce()
		return nil, err
	}
	return tx, nil
}

// nextNonce hands out the operator's next account nonce, loading it from the
// node's pending state the first time and after a failed submission.
func (b *EthBackend) nextNonce(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.nonceLoaded {
		pending, err := b.client.PendingNonceAt(ctx, b.operator.From)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to fetch operator nonce: %v", x402.ErrFacilitatorUnavailable, err)
		}
		b.nonce = pending
		b.nonceLoaded = true
	}
	nonce := b.nonce
	b.nonce++
	return nonce, nil
}

func (b *EthBackend) resyncNonce() {
	b.mu.Lock()
	b.nonceLoaded = false
	b.mu.Unlock()
}

// WaitMined implements Backend.
func (b *EthBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, b.client, tx)
}

// PackTransfer returns the calldata of transferWithAuthorization for transfer.
func PackTransfer(transfer Transfer) ([]byte, error) {
	auth := transfer.Authorization
	return tokenABI.Pack("transferWithAuthorization",
		auth.From,
		auth.To,
		auth.Value,
		auth.ValidAfter,
		auth.ValidBefore,
		[32]byte(auth.Nonce),
		transfer.V,
		[32]byte(transfer.R),
		[32]byte(transfer.S),
	)
}

// ChainConfig configures a real on-chain settler.
type ChainConfig struct {
	// RPCURL is the JSON-RPC endpoint of the settlement chain.
	RPCURL string

	// OperatorKey is the hex private key of the gas-paying operator account.
	OperatorKey string

	// ChainID is the expected chain id. When zero it is fetched from the node once.
	ChainID int64

	// Timeouts bound the chain id lookup and each settlement.
	Timeouts x402.TimeoutConfig
}

// DialEthBackend connects to cfg.RPCURL and resolves the chain id. When cfg.ChainID
// is set it must match the node's chain id.
func DialEthBackend(ctx context.Context, cfg ChainConfig) (*EthBackend, *big.Int, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("%w: RPCURL is required", x402.ErrInvalidConfig)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKey, "0x"))
	if err != nil {
		return nil, nil, x402.ErrInvalidKey
	}

	timeouts := cfg.Timeouts
	if timeouts == (x402.TimeoutConfig{}) {
		timeouts = x402.DefaultTimeouts
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}

	retryConfig := retry.DefaultConfig
	retryConfig.AttemptTimeout = timeouts.RPCTimeout
	chainID, err := retry.WithRetry(ctx, retryConfig, retry.IsTransient, client.ChainID)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%w: failed to fetch chain id: %v", x402.ErrFacilitatorUnavailable, err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, nil, fmt.Errorf("%w: node reports chain id %s, expected %d", x402.ErrInvalidNetwork, chainID, cfg.ChainID)
	}

	backend, err := NewEthBackend(client, key, chainID)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return backend, chainID, nil
}
