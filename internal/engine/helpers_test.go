package engine

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pvzzle/mintbot/internal/history"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var testChainID = big.NewInt(1337)

// fakeChain implements ChainClient for tests.
type fakeChain struct {
	mu sync.Mutex

	nonces   map[common.Address]uint64
	nonceErr error
	gasPrice *big.Int

	broadcastFn    func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	broadcastCalls int
	broadcastTxs   []*types.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		nonces:   make(map[common.Address]uint64),
		gasPrice: big.NewInt(1_000_000_000),
	}
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonces[addr], nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) Broadcast(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.mu.Lock()
	f.broadcastCalls++
	f.broadcastTxs = append(f.broadcastTxs, tx)
	fn := f.broadcastFn
	f.mu.Unlock()

	if fn == nil {
		return confirmedReceipt(tx), nil
	}
	return fn(ctx, tx)
}

func (f *fakeChain) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broadcastCalls
}

func (f *fakeChain) sentNonces() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.broadcastTxs))
	for _, tx := range f.broadcastTxs {
		out = append(out, tx.Nonce())
	}
	return out
}

func confirmedReceipt(tx *types.Transaction) *types.Receipt {
	return &types.Receipt{
		TxHash:      tx.Hash(),
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(123),
		GasUsed:     90_000,
	}
}

// testWallet implements Wallet around a raw test key.
type testWallet struct {
	addr common.Address
	key  *ecdsa.PrivateKey
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testWallet{addr: crypto.PubkeyToAddress(key.PublicKey), key: key}
}

func (w *testWallet) Address() common.Address { return w.addr }

func (w *testWallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}

// testProvider implements CallDataProvider.
type testProvider struct {
	contract common.Address
	value    *big.Int
}

func newTestProvider() *testProvider {
	return &testProvider{
		contract: common.HexToAddress("0x00000000000000000000000000000000000000ff"),
		value:    big.NewInt(0),
	}
}

func (p *testProvider) Address() common.Address { return p.contract }
func (p *testProvider) MintValue() *big.Int     { return new(big.Int).Set(p.value) }
func (p *testProvider) EncodeMintCall(recipient common.Address) ([]byte, error) {
	return append([]byte{0x12, 0x34, 0x56, 0x78}, recipient.Bytes()...), nil
}

func testStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.json"), 1000)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func signedTestTx(t *testing.T, w *testWallet, nonce uint64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      200_000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	tx, err := w.SignTx(unsigned, testChainID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}
