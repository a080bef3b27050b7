package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/evm"
)

// Transfer is a signed authorization ready to be submitted.
type Transfer struct {
	Token         common.Address
	Authorization *evm.Authorization
	V             uint8
	R             common.Hash
	S             common.Hash
}

// Backend submits transfers and waits for them to be mined.
type Backend interface {
	// SubmitTransfer broadcasts transferWithAuthorization and returns the pending transaction.
	SubmitTransfer(ctx context.Context, transfer Transfer) (*types.Transaction, error)

	// WaitMined blocks until tx is included in a block or ctx is done.
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Chain settles payments on-chain through a Backend.
type Chain struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// ChainOption configures a Chain settler.
type ChainOption func(*Chain)

// WithSettleTimeout bounds submission plus confirmation.
func WithSettleTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		c.timeout = d
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

// NewChain creates an on-chain settler.
func NewChain(backend Backend, opts ...ChainOption) *Chain {
	c := &Chain{
		backend: backend,
		timeout: x402.DefaultTimeouts.SettleTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settle implements Settler. It submits the authorization once and waits for the
// receipt. Submission is never retried since the first broadcast may have landed.
func (c *Chain) Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	auth, err := evm.ParseAuthorization(payment.Payload)
	if err != nil {
		return nil, settlementError("invalid authorization", err)
	}
	v, r, s, err := evm.ParseSignature(payment.Payload)
	if err != nil {
		return nil, settlementError("invalid signature", err)
	}
	if !common.IsHexAddress(requirement.Asset) {
		return nil, settlementError("invalid asset address", fmt.Errorf("%q", requirement.Asset))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.backend.SubmitTransfer(ctx, Transfer{
		Token:         common.HexToAddress(requirement.Asset),
		Authorization: auth,
		V:             v,
		R:             r,
		S:             s,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError("submission timed out", err)
		}
		return nil, settlementError("failed to submit transfer", err)
	}

	txHash := tx.Hash().Hex()
	c.logger.Info("settlement submitted", "transaction", txHash, "network", payment.Network, "payer", payment.Payload.From)

	receipt, err := c.backend.WaitMined(ctx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError("confirmation timed out", err).WithDetails("transaction", txHash)
		}
		return nil, settlementError("failed waiting for confirmation", err).WithDetails("transaction", txHash)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, settlementError("transfer reverted", x402.ErrSettlementFailed).WithDetails("transaction", txHash)
	}

	return &x402.SettlementResponse{
		Success:     true,
		Transaction: txHash,
		Network:     payment.Network,
		Payer:       payment.Payload.From,
	}, nil
}

func settlementError(message string, err error) *x402.PaymentError {
	if !errors.Is(err, x402.ErrSettlementFailed) {
		err = fmt.Errorf("%w: %v", x402.ErrSettlementFailed, err)
	}
	return x402.NewPaymentError(x402.ErrCodeSettlementFailed, message, err)
}

func timeoutError(message string, err error) *x402.PaymentError {
	return x402.NewPaymentError(x402.ErrCodeSettlementFailed, message, fmt.Errorf("%w: %w: %v", x402.ErrSettlementFailed, x402.ErrTimeout, err))
}
