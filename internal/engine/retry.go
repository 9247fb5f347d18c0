package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/google/uuid"
)

// Wallet is the signing capability supplied by wallet management. Key
// material never crosses this boundary.
type Wallet interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// CallDataProvider is supplied by contract management.
type CallDataProvider interface {
	Address() common.Address
	EncodeMintCall(recipient common.Address) ([]byte, error)
	MintValue() *big.Int
}

// Config bounds a submission chain.
type Config struct {
	ChainID       *big.Int
	MaxAttempts   int
	BaseDelay     time.Duration
	SubmitTimeout time.Duration
	GasLimit      uint64
}

// mintRequest is the ephemeral state of one logical mint, carried across
// retries for log correlation. Never persisted.
type mintRequest struct {
	id      string
	wallet  Wallet
	chatRef int64
}

// Orchestrator decides retry vs. surface for a single wallet's mint. Each
// attempt re-acquires a fresh nonce, re-prices and re-signs; nonces from
// failed attempts are never reused.
type Orchestrator struct {
	client ChainClient
	alloc  *NonceAllocator
	sub    *Submitter
	cfg    Config

	// sleep waits between attempts; injected so tests observe backoff
	// without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(client ChainClient, alloc *NonceAllocator, sub *Submitter, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 90 * time.Second
	}
	return &Orchestrator{
		client: client,
		alloc:  alloc,
		sub:    sub,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SubmitWithRetry runs up to MaxAttempts submission attempts for one wallet,
// backing off baseDelay*2^k after a retryable failure on attempt k. Fatal
// contract errors surface immediately. The last error is returned once
// attempts are exhausted.
func (o *Orchestrator) SubmitWithRetry(ctx context.Context, wallet Wallet, provider CallDataProvider, chatRef int64) (*types.Receipt, error) {
	if wallet == nil {
		return nil, fmt.Errorf("%w: nil wallet", ErrValidation)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil call data provider", ErrValidation)
	}
	if (provider.Address() == common.Address{}) {
		return nil, fmt.Errorf("%w: zero contract address", ErrValidation)
	}

	req := mintRequest{
		id:      uuid.NewString(),
		wallet:  wallet,
		chatRef: chatRef,
	}

	var lastErr error
	for attempt := 0; attempt < o.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.cfg.BaseDelay<<(attempt-1)); err != nil {
				return nil, err
			}
		}

		receipt, err := o.attempt(ctx, req, provider)
		if err == nil {
			return receipt, nil
		}
		lastErr = err

		if errors.Is(err, ErrNonceConflict) {
			o.alloc.Invalidate(wallet.Address())
		}
		if !Retryable(err) {
			return nil, err
		}
		log.Printf("[engine] mint %s wallet %s attempt %d/%d failed: %v",
			req.id, wallet.Address().Hex(), attempt+1, o.cfg.MaxAttempts, err)
	}
	return nil, fmt.Errorf("mint %s: %d attempts exhausted: %w", req.id, o.cfg.MaxAttempts, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, req mintRequest, provider CallDataProvider) (*types.Receipt, error) {
	from := req.wallet.Address()

	nonce, err := o.alloc.Allocate(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := o.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	callData, err := provider.EncodeMintCall(from)
	if err != nil {
		return nil, err
	}

	to := provider.Address()
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    provider.MintValue(),
		Gas:      o.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})

	signed, err := req.wallet.SignTx(unsigned, o.cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("sign tx from %s: %w", from.Hex(), err)
	}

	return o.sub.Submit(ctx, signed, from, o.cfg.SubmitTimeout)
}
