package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceAllocator hands out per-address nonces that never repeat within the
// process lifetime. The chain count is fetched fresh on every allocation and
// reconciled with the last nonce issued locally, so concurrent chains that
// share an address still get a contiguous ascending run.
//
// Issued nonces are never released, not even after success. A conflict
// reported by the node (nonce reuse, replacement underpriced) means the
// local view is stale; Invalidate drops it so the next allocation re-derives
// from the chain.
type NonceAllocator struct {
	client ChainClient

	mu     sync.Mutex
	states map[common.Address]*addrNonce
}

type addrNonce struct {
	mu     sync.Mutex
	last   uint64
	issued bool
}

func NewNonceAllocator(client ChainClient) *NonceAllocator {
	return &NonceAllocator{
		client: client,
		states: make(map[common.Address]*addrNonce),
	}
}

func (a *NonceAllocator) state(addr common.Address) *addrNonce {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.states[addr]
	if st == nil {
		st = &addrNonce{}
		a.states[addr] = st
	}
	return st
}

// Allocate reserves the next nonce for addr: max(onChainCount, lastIssued+1).
// The chain fetch happens outside the per-address lock; the max rule keeps
// the sequence gapless even when fetches race.
func (a *NonceAllocator) Allocate(ctx context.Context, addr common.Address) (uint64, error) {
	onChain, err := a.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, err
	}

	st := a.state(addr)
	st.mu.Lock()
	defer st.mu.Unlock()

	next := onChain
	if st.issued && st.last+1 > next {
		next = st.last + 1
	}
	st.last = next
	st.issued = true
	return next, nil
}

// Invalidate forgets the cached sequence for addr.
func (a *NonceAllocator) Invalidate(addr common.Address) {
	st := a.state(addr)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.issued = false
}
