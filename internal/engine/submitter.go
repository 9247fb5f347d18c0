package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pvzzle/mintbot/internal/history"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Submitter broadcasts one signed transaction with a bounded wait and keeps
// the history store in step: a pending record goes in before broadcast, and
// exactly one terminal mutation follows, whatever the outcome.
type Submitter struct {
	client  ChainClient
	store   *history.Store
	archive history.Archiver // optional

	// after is the timeout source; swapped out in tests.
	after func(d time.Duration) <-chan time.Time
}

func NewSubmitter(client ChainClient, store *history.Store, archive history.Archiver) *Submitter {
	return &Submitter{
		client:  client,
		store:   store,
		archive: archive,
		after:   time.After,
	}
}

type broadcastResult struct {
	receipt *types.Receipt
	err     error
}

// Submit races the broadcast against timeout. The transaction hash comes
// from the signed payload, so it is known before the network is touched.
// If the timer wins, the in-flight broadcast is abandoned: its eventual
// completion is not awaited and cannot change the recorded outcome.
func (s *Submitter) Submit(ctx context.Context, tx *types.Transaction, from common.Address, timeout time.Duration) (*types.Receipt, error) {
	hash := tx.Hash()

	toStr := "contract-creation"
	if to := tx.To(); to != nil {
		toStr = to.Hex()
	}
	rec := history.Record{
		Hash:        hash.Hex(),
		FromAddr:    from.Hex(),
		ToAddr:      toStr,
		Status:      history.StatusPending,
		Nonce:       tx.Nonce(),
		GasPriceWei: tx.GasPrice().String(),
		GasLimit:    tx.Gas(),
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.store.Append(rec); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	// Buffered so the losing broadcast goroutine can finish and be collected
	// instead of blocking forever.
	done := make(chan broadcastResult, 1)
	go func() {
		receipt, err := s.client.Broadcast(ctx, tx)
		done <- broadcastResult{receipt: receipt, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			err := fmt.Errorf("%w (tx %s)", Classify(res.err), hash.Hex())
			if ferr := s.finalizeFailed(ctx, hash.Hex(), err); ferr != nil {
				return nil, ferr
			}
			return nil, err
		}
		if ferr := s.finalizeConfirmed(ctx, hash.Hex(), res.receipt); ferr != nil {
			// The chain accepted the transaction; a record that went
			// terminal meanwhile cannot undo that.
			if !errors.Is(ferr, history.ErrTerminal) {
				return nil, ferr
			}
			log.Printf("[engine] tx %s confirmed after record went terminal: %v", hash.Hex(), ferr)
		}
		return res.receipt, nil

	case <-s.after(timeout):
		err := fmt.Errorf("%w: no acknowledgment within %s (tx %s)", ErrTimeout, timeout, hash.Hex())
		if ferr := s.finalizeFailed(ctx, hash.Hex(), err); ferr != nil {
			return nil, ferr
		}
		return nil, err

	case <-ctx.Done():
		err := fmt.Errorf("%w: %v (tx %s)", ErrTimeout, ctx.Err(), hash.Hex())
		if ferr := s.finalizeFailed(ctx, hash.Hex(), err); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}
}

func (s *Submitter) finalizeConfirmed(ctx context.Context, hash string, receipt *types.Receipt) error {
	err := s.store.Mutate(hash, func(r *history.Record) {
		r.Status = history.StatusConfirmed
		if receipt.BlockNumber != nil {
			bn := receipt.BlockNumber.Uint64()
			r.BlockNum = &bn
		}
		gu := receipt.GasUsed
		r.GasUsed = &gu
	})
	if err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	s.archiveByHash(ctx, hash)
	return nil
}

func (s *Submitter) finalizeFailed(ctx context.Context, hash string, cause error) error {
	err := s.store.Mutate(hash, func(r *history.Record) {
		r.Status = history.StatusFailed
		r.ErrorMsg = TruncateError(cause)
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	s.archiveByHash(ctx, hash)
	return nil
}

// archiveByHash mirrors the terminal record to long-term storage.
// Best-effort: the file store already persisted the outcome.
func (s *Submitter) archiveByHash(ctx context.Context, hash string) {
	if s.archive == nil {
		return
	}
	// The archive write must outlive a cancelled submit context.
	ctx = context.WithoutCancel(ctx)
	recs := s.store.Query("", 0)
	for _, r := range recs {
		if r.Hash == hash {
			if err := s.archive.ArchiveAttempt(ctx, r); err != nil {
				log.Printf("[engine] archive tx %s: %v", hash, err)
			}
			return
		}
	}
}
