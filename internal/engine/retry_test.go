package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/mintbot/internal/history"

	"github.com/ethereum/go-ethereum/core/types"
)

func testOrchestrator(t *testing.T, chain *fakeChain, maxAttempts int) (*Orchestrator, *[]time.Duration) {
	t.Helper()

	store := testStore(t)
	sub := NewSubmitter(chain, store, nil)
	sub.after = neverTimeout

	orch := NewOrchestrator(chain, NewNonceAllocator(chain), sub, Config{
		ChainID:       testChainID,
		MaxAttempts:   maxAttempts,
		BaseDelay:     10 * time.Millisecond,
		SubmitTimeout: time.Minute,
		GasLimit:      200_000,
	})

	delays := &[]time.Duration{}
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return orch, delays
}

func TestRetry_TimeoutExhaustsAttempts(t *testing.T) {
	chain := newFakeChain()
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return nil, fmt.Errorf("%w: no acknowledgment", ErrTimeout)
	}

	orch, delays := testOrchestrator(t, chain, 3)

	_, err := orch.SubmitWithRetry(context.Background(), newTestWallet(t), newTestProvider(), 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected final ErrTimeout, got %v", err)
	}

	if got := chain.calls(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}

	base := 10 * time.Millisecond
	want := []time.Duration{base, 2 * base}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d backoff waits, got %v", len(want), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("backoff %d: expected %s, got %s", i, d, (*delays)[i])
		}
	}
}

func TestRetry_FatalShortCircuits(t *testing.T) {
	chain := newFakeChain()
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return nil, fmt.Errorf("execution reverted: max supply reached")
	}

	orch, delays := testOrchestrator(t, chain, 3)

	_, err := orch.SubmitWithRetry(context.Background(), newTestWallet(t), newTestProvider(), 0)
	if !errors.Is(err, ErrFatalContract) {
		t.Fatalf("expected ErrFatalContract, got %v", err)
	}

	if got := chain.calls(); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no backoff waits, got %v", *delays)
	}
}

func TestRetry_FreshNonceEveryAttempt(t *testing.T) {
	chain := newFakeChain()
	var calls int
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("i/o timeout")
		}
		return confirmedReceipt(tx), nil
	}

	orch, _ := testOrchestrator(t, chain, 3)

	w := newTestWallet(t)
	receipt, err := orch.SubmitWithRetry(context.Background(), w, newTestProvider(), 0)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if receipt == nil {
		t.Fatal("nil receipt on success")
	}

	// the allocator keeps counting up; stale nonces are never reused
	got := chain.sentNonces()
	want := []uint64{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %d broadcasts, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: expected nonce %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRetry_NonceConflictInvalidatesCache(t *testing.T) {
	chain := newFakeChain()

	w := newTestWallet(t)
	chain.nonces[w.Address()] = 7

	var calls int
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("nonce too low")
		}
		return confirmedReceipt(tx), nil
	}

	orch, _ := testOrchestrator(t, chain, 3)

	// push the local cache ahead of the chain
	if _, err := orch.alloc.Allocate(context.Background(), w.Address()); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := orch.alloc.Allocate(context.Background(), w.Address()); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	_, err := orch.SubmitWithRetry(context.Background(), w, newTestProvider(), 0)
	if err != nil {
		t.Fatalf("expected success after conflict, got %v", err)
	}

	got := chain.sentNonces()
	if len(got) != 2 {
		t.Fatalf("expected 2 broadcasts, got %v", got)
	}
	// first attempt used the stale local sequence (9), the conflict
	// invalidated the cache, so the retry re-derived 7 from the chain
	if got[0] != 9 || got[1] != 7 {
		t.Fatalf("expected nonces [9 7], got %v", got)
	}
}

func TestRetry_ValidationRejectsBeforeChain(t *testing.T) {
	chain := newFakeChain()
	orch, _ := testOrchestrator(t, chain, 3)

	_, err := orch.SubmitWithRetry(context.Background(), newTestWallet(t), nil, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if chain.calls() != 0 {
		t.Fatalf("validation error touched the chain: %d calls", chain.calls())
	}
}

func TestRetry_ConflictReplaySameHash(t *testing.T) {
	chain := newFakeChain()

	w := newTestWallet(t)
	chain.nonces[w.Address()] = 4

	// the node rejects the first broadcast but its pending count never
	// moves, so the retry re-derives the same nonce; with the same gas
	// price the re-signed payload is byte-identical and keeps its hash
	var calls int
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("invalid nonce")
		}
		return confirmedReceipt(tx), nil
	}

	store := testStore(t)
	sub := NewSubmitter(chain, store, nil)
	sub.after = neverTimeout

	orch := NewOrchestrator(chain, NewNonceAllocator(chain), sub, Config{
		ChainID:       testChainID,
		MaxAttempts:   3,
		BaseDelay:     10 * time.Millisecond,
		SubmitTimeout: time.Minute,
		GasLimit:      200_000,
	})
	orch.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	receipt, err := orch.SubmitWithRetry(context.Background(), w, newTestProvider(), 0)
	if err != nil {
		t.Fatalf("expected success on the replayed payload, got %v", err)
	}
	if receipt == nil {
		t.Fatal("nil receipt on success")
	}

	// no third broadcast: the node's acceptance of the replay is final
	if got := chain.calls(); got != 2 {
		t.Fatalf("expected exactly 2 broadcasts, got %d", got)
	}
	nonces := chain.sentNonces()
	if nonces[0] != 4 || nonces[1] != 4 {
		t.Fatalf("expected identical nonce 4 on both broadcasts, got %v", nonces)
	}

	recs := store.Query("", 0)
	if len(recs) != 1 {
		t.Fatalf("expected one record for the replayed hash, got %d: %+v", len(recs), recs)
	}
	if recs[0].Hash != receipt.TxHash.Hex() || recs[0].Status != history.StatusConfirmed {
		t.Fatalf("expected confirmed record for %s, got %+v", receipt.TxHash.Hex(), recs[0])
	}
}

func TestRetry_ExhaustionErrorCarriesTxHash(t *testing.T) {
	chain := newFakeChain()
	chain.broadcastFn = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return nil, fmt.Errorf("connection refused")
	}

	orch, _ := testOrchestrator(t, chain, 2)

	_, err := orch.SubmitWithRetry(context.Background(), newTestWallet(t), newTestProvider(), 0)
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	lastHash := chain.broadcastTxs[len(chain.broadcastTxs)-1].Hash().Hex()
	if !strings.Contains(err.Error(), lastHash) {
		t.Fatalf("exhaustion error missing tx hash %s: %v", lastHash, err)
	}
}
