package pg

import (
	"context"
	"time"

	"github.com/pvzzle/mintbot/internal/history"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Archive keeps a long-term copy of terminal mint attempts. Unlike the
// bounded file store it never evicts, so operators can audit past the cap.
type Archive struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Archive { return &Archive{pool: pool} }

func (a *Archive) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS mint_attempts (
  hash TEXT PRIMARY KEY,

  from_addr TEXT NOT NULL,
  to_addr   TEXT NOT NULL,
  status    TEXT NOT NULL,

  nonce         BIGINT NOT NULL,
  gas_price_wei NUMERIC(78,0) NULL,
  gas_limit     BIGINT NOT NULL,

  submitted_at TIMESTAMPTZ NOT NULL,

  block_number BIGINT NULL,
  gas_used     BIGINT NULL,
  error_msg    TEXT NULL,

  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS mint_attempts_from_submitted_idx
  ON mint_attempts(from_addr, submitted_at DESC);
`
	_, err := a.pool.Exec(ctx, ddl)
	return err
}

func (a *Archive) ArchiveAttempt(ctx context.Context, rec history.Record) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		gasPrice any = nil
		blockNum any = nil
		gasUsed  any = nil
		errMsg   any = nil
	)
	if rec.GasPriceWei != "" {
		gasPrice = rec.GasPriceWei
	}
	if rec.BlockNum != nil {
		blockNum = int64(*rec.BlockNum)
	}
	if rec.GasUsed != nil {
		gasUsed = int64(*rec.GasUsed)
	}
	if rec.ErrorMsg != "" {
		errMsg = rec.ErrorMsg
	}

	q := `
INSERT INTO mint_attempts(
  hash, from_addr, to_addr, status,
  nonce, gas_price_wei, gas_limit,
  submitted_at, block_number, gas_used, error_msg
) VALUES (
  $1, $2, $3, $4,
  $5, $6::numeric, $7,
  $8, $9, $10, $11
)
ON CONFLICT(hash) DO UPDATE SET
  status       = EXCLUDED.status,
  block_number = COALESCE(EXCLUDED.block_number, mint_attempts.block_number),
  gas_used     = COALESCE(EXCLUDED.gas_used, mint_attempts.gas_used),
  error_msg    = COALESCE(EXCLUDED.error_msg, mint_attempts.error_msg),
  updated_at   = now()
`
	_, err := a.pool.Exec(cctx, q,
		rec.Hash, rec.FromAddr, rec.ToAddr, string(rec.Status),
		int64(rec.Nonce), gasPrice, int64(rec.GasLimit),
		rec.SubmittedAt, blockNum, gasUsed, errMsg,
	)
	return err
}
