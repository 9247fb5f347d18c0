package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const DefaultCap = 100

var (
	ErrNotFound = errors.New("record not found")
	ErrTerminal = errors.New("record already terminal")
)

// Store is a bounded, file-backed log of mint attempts. The whole log lives
// in memory (oldest first) and the backing file is rewritten wholesale on
// every change. With the record cap this stays cheap.
//
// A crash between Append and Mutate leaves the record stuck at pending.
// That is accepted: the store never reconciles pending records on restart.
type Store struct {
	mu   sync.RWMutex
	path string
	cap  int
	recs []Record
}

// Open loads the log at path, creating an empty one if the file is absent.
func Open(path string, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	s := &Store{path: path, cap: capacity}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.recs); err != nil {
		return nil, fmt.Errorf("decode history file %s: %w", path, err)
	}
	if len(s.recs) > s.cap {
		s.recs = s.recs[len(s.recs)-s.cap:]
	}
	return s, nil
}

// Append adds a record and persists before returning. The oldest record is
// evicted once the cap is exceeded.
//
// A re-broadcast of the same signed payload keeps its hash, so an existing
// record with the same hash is superseded: a hash maps to exactly one record
// and reaches exactly one terminal status.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].Hash == rec.Hash {
			s.recs = append(s.recs[:i], s.recs[i+1:]...)
			break
		}
	}
	s.recs = append(s.recs, rec)
	if len(s.recs) > s.cap {
		s.recs = s.recs[len(s.recs)-s.cap:]
	}
	return s.persist()
}

// Mutate applies fn to the record with the given hash and persists before
// returning. Records already in a terminal status are never touched again.
func (s *Store) Mutate(hash string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].Hash != hash {
			continue
		}
		if s.recs[i].Terminal() {
			return fmt.Errorf("%w: %s", ErrTerminal, hash)
		}
		fn(&s.recs[i])
		return s.persist()
	}
	return fmt.Errorf("%w: %s", ErrNotFound, hash)
}

// Query returns records most recent first, optionally filtered by from
// address ("" matches everything). limit <= 0 means no limit.
func (s *Store) Query(fromAddr string, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.recs))
	for i := len(s.recs) - 1; i >= 0; i-- {
		if fromAddr != "" && s.recs[i].FromAddr != fromAddr {
			continue
		}
		out = append(out, s.recs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// persist rewrites the backing file. Must be called with the write lock held.
// Write-to-temp plus rename keeps a crash from corrupting the previous file.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
