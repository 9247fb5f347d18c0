package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestAllocator_ContiguousUnderConcurrency(t *testing.T) {
	chain := newFakeChain()
	chain.nonces[testAddr] = 5

	a := NewNonceAllocator(chain)

	const n = 50
	results := make([]uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nonce, err := a.Allocate(context.Background(), testAddr)
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			results[i] = nonce
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, got := range results {
		if want := uint64(5 + i); got != want {
			t.Fatalf("expected contiguous run from 5, position %d: want %d got %d", i, want, got)
		}
	}
}

func TestAllocator_ChainAheadWins(t *testing.T) {
	chain := newFakeChain()
	chain.nonces[testAddr] = 5

	a := NewNonceAllocator(chain)

	got, err := a.Allocate(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}

	// another process moved the account forward
	chain.mu.Lock()
	chain.nonces[testAddr] = 10
	chain.mu.Unlock()

	got, err = a.Allocate(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected chain count 10 to win over lastIssued+1, got %d", got)
	}

	got, err = a.Allocate(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
}

func TestAllocator_InvalidateRederivesFromChain(t *testing.T) {
	chain := newFakeChain()
	chain.nonces[testAddr] = 7

	a := NewNonceAllocator(chain)

	for want := uint64(7); want < 10; want++ {
		got, err := a.Allocate(context.Background(), testAddr)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	a.Invalidate(testAddr)

	got, err := a.Allocate(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected re-derive from chain count 7 after invalidate, got %d", got)
	}
}

func TestAllocator_NetworkErrorPropagates(t *testing.T) {
	chain := newFakeChain()
	chain.nonceErr = fmt.Errorf("%w: connection refused", ErrNetwork)

	a := NewNonceAllocator(chain)

	_, err := a.Allocate(context.Background(), testAddr)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
