package engine

import (
	"context"
	"log"
	"sync"
)

// WalletOutcome is one wallet's terminal result inside a batch.
type WalletOutcome struct {
	Wallet string
	Hash   string
	Err    error
}

// BatchResult aggregates a fan-out mint. Partial success is the expected
// common case; Success < Total is not an error.
type BatchResult struct {
	Success  int
	Total    int
	Failures []WalletOutcome
}

// MintAll launches one independent submission chain per wallet and waits for
// all of them to reach a terminal outcome. Chains never cancel or block each
// other: a fatal error on one wallet leaves the rest running.
func (o *Orchestrator) MintAll(ctx context.Context, wallets []Wallet, provider CallDataProvider, chatRef int64) BatchResult {
	res := BatchResult{Total: len(wallets)}
	if len(wallets) == 0 {
		return res
	}

	outcomes := make([]WalletOutcome, len(wallets))

	var wg sync.WaitGroup
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w Wallet) {
			defer wg.Done()
			receipt, err := o.SubmitWithRetry(ctx, w, provider, chatRef)
			out := WalletOutcome{Wallet: w.Address().Hex(), Err: err}
			if receipt != nil {
				out.Hash = receipt.TxHash.Hex()
			}
			outcomes[i] = out
		}(i, w)
	}
	wg.Wait()

	for _, out := range outcomes {
		if out.Err == nil {
			res.Success++
			continue
		}
		res.Failures = append(res.Failures, out)
		log.Printf("[engine] batch wallet %s failed: %v", out.Wallet, out.Err)
	}
	return res
}
