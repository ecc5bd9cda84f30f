// Package chain submits deposit transactions to an EVM network.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

const transferGas = 21000

// Backend is the subset of RPC calls used to send a value transfer.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Wallet signs native-coin deposits to a fixed address and waits for them to be mined.
type Wallet struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	to           common.Address
	receiptTries int
	receiptDelay time.Duration
}

type WalletOption func(*Wallet)

// WithReceiptPolling sets how many times the receipt is polled and the initial
// delay, which doubles between polls.
func WithReceiptPolling(retries int, delay time.Duration) WalletOption {
	return func(w *Wallet) {
		w.receiptTries = retries
		w.receiptDelay = delay
	}
}

func NewWallet(backend Backend, hexKey, depositAddress string, opts ...WalletOption) (*Wallet, error) {
	if backend == nil {
		return nil, errors.New("chain backend is nil")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	to, err := ParseAddress(depositAddress)
	if err != nil {
		return nil, fmt.Errorf("deposit address: %w", err)
	}
	w := &Wallet{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		to:           to,
		receiptTries: 8,
		receiptDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Wallet) Address() common.Address {
	return w.from
}

// ToWei converts a coin amount to wei. Amounts with more than 18 decimals are rejected.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("invalid amount: %s must be positive", amount.String())
	}
	wei := amount.Shift(18)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount: %s has more than 18 decimals", amount.String())
	}
	return wei.BigInt(), nil
}

// Deposit sends amount to the deposit address and returns the transaction hash
// once the receipt reports success.
func (w *Wallet) Deposit(ctx context.Context, amount decimal.Decimal) (string, error) {
	value, err := ToWei(amount)
	if err != nil {
		return "", err
	}
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("chain id: %w", err)
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	to := w.to
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("sign deposit: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return "", err
	}

	hash := signed.Hash()
	var receipt *types.Receipt
	err = withRetry(ctx, w.receiptTries, w.receiptDelay, func(ctx context.Context) error {
		r, err := w.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("receipt %s not available", hash.Hex())
		}
		receipt = r
		return nil
	})
	if err != nil {
		return hash.Hex(), fmt.Errorf("wait for receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash.Hex(), fmt.Errorf("transaction %s reverted", hash.Hex())
	}
	return hash.Hex(), nil
}
