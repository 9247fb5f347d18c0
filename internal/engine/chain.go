package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"golang.org/x/time/rate"
)

// ChainClient is the node surface the engine needs. Broadcast blocks until
// the chain acknowledges the transaction (receipt) or the context ends.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	Broadcast(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// RPCClient implements ChainClient on top of a single RPC endpoint.
type RPCClient struct {
	eth          *ethclient.Client
	pollInterval time.Duration
	limiter      *rate.Limiter
}

// NewRPCClient wraps eth. rps > 0 caps the broadcast rate across all
// submission chains; 0 disables the limiter.
func NewRPCClient(eth *ethclient.Client, pollInterval time.Duration, rps float64) *RPCClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	c := &RPCClient{eth: eth, pollInterval: pollInterval}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

func (c *RPCClient) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("%w: transaction count for %s: %v", ErrNetwork, addr.Hex(), err)
	}
	return n, nil
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", ErrNetwork, err)
	}
	return p, nil
}

// Broadcast sends the signed transaction and polls for its receipt. The
// caller races this against its own timeout; there is no way to cancel a
// transaction that already reached the node, so polling just stops when the
// context ends.
func (c *RPCClient) Broadcast(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				return nil, err
			}
			return receipt, nil
		}
	}
}
