package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds one managed key. The key never leaves this package; callers
// only get the address and a signing call.
type Wallet struct {
	addr common.Address
	key  *ecdsa.PrivateKey
}

func (w *Wallet) Address() common.Address { return w.addr }

func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}

// Pool is the set of wallets a batch mints from.
type Pool struct {
	wallets []*Wallet
}

// LoadKeystore decrypts every UTC/JSON key file in dir with the given
// passphrase. Files are loaded in name order so the wallet listing is
// stable across restarts.
func LoadKeystore(dir, passphrase string) (*Pool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	p := &Pool{}
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", name, err)
		}
		k, err := keystore.DecryptKey(raw, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt key file %s: %w", name, err)
		}
		p.wallets = append(p.wallets, &Wallet{
			addr: crypto.PubkeyToAddress(k.PrivateKey.PublicKey),
			key:  k.PrivateKey,
		})
	}
	if len(p.wallets) == 0 {
		return nil, fmt.Errorf("keystore dir %s holds no key files", dir)
	}
	return p, nil
}

// NewFromKeys builds a pool from in-memory keys. Test helper.
func NewFromKeys(keys ...*ecdsa.PrivateKey) *Pool {
	p := &Pool{}
	for _, k := range keys {
		p.wallets = append(p.wallets, &Wallet{
			addr: crypto.PubkeyToAddress(k.PublicKey),
			key:  k,
		})
	}
	return p
}

func (p *Pool) Size() int { return len(p.wallets) }

func (p *Pool) Wallets() []*Wallet {
	out := make([]*Wallet, len(p.wallets))
	copy(out, p.wallets)
	return out
}

func (p *Pool) Addresses() []common.Address {
	out := make([]common.Address, 0, len(p.wallets))
	for _, w := range p.wallets {
		out = append(out, w.addr)
	}
	return out
}
