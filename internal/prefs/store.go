package prefs

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Settings are a chat's mint preferences. Zero values fall back to the
// process-wide defaults.
type Settings struct {
	Contract    *common.Address // target contract override
	WalletCount int             // wallets to mint from, 0 = all
}

type Store struct {
	mu   sync.RWMutex
	data map[int64]*Settings
}

func NewStore() *Store {
	return &Store{data: make(map[int64]*Settings)}
}

func (s *Store) SetContract(chatID int64, addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(chatID)
	p.Contract = &addr
}

func (s *Store) SetWalletCount(chatID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(chatID)
	if n <= 0 {
		p.WalletCount = 0
		s.cleanupIfEmpty(chatID, p)
		return
	}
	p.WalletCount = n
}

func (s *Store) ClearContract(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.data[chatID]
	if p == nil {
		return
	}
	p.Contract = nil
	s.cleanupIfEmpty(chatID, p)
}

func (s *Store) ClearAll(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
}

// GetCopy returns a copy so callers cannot mutate shared state.
func (s *Store) GetCopy(chatID int64) (Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.data[chatID]
	if p == nil {
		return Settings{}, false
	}

	var out Settings
	if p.Contract != nil {
		a := *p.Contract
		out.Contract = &a
	}
	out.WalletCount = p.WalletCount
	return out, true
}

func (s *Store) getOrCreate(chatID int64) *Settings {
	p := s.data[chatID]
	if p == nil {
		p = &Settings{}
		s.data[chatID] = p
	}
	return p
}

func (s *Store) cleanupIfEmpty(chatID int64, p *Settings) {
	if p == nil {
		return
	}
	if p.Contract == nil && p.WalletCount == 0 {
		delete(s.data, chatID)
	}
}
