package history

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one mint submission attempt. A record is created as pending
// right before broadcast and moved to exactly one terminal status after.
type Record struct {
	Hash        string    `json:"hash"`
	FromAddr    string    `json:"from_addr"`
	ToAddr      string    `json:"to_addr"`
	Status      Status    `json:"status"`
	Nonce       uint64    `json:"nonce"`
	GasPriceWei string    `json:"gas_price_wei"`
	GasLimit    uint64    `json:"gas_limit"`
	SubmittedAt time.Time `json:"submitted_at"`

	// set only on confirmed
	BlockNum *uint64 `json:"block_num,omitempty"`
	GasUsed  *uint64 `json:"gas_used,omitempty"`

	// set only on failed
	ErrorMsg string `json:"error_msg,omitempty"`
}

func (r Record) Terminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusFailed
}
