package tg

import (
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/mintbot/internal/engine"
	"github.com/pvzzle/mintbot/internal/history"
)

func TestFormatBatchResult(t *testing.T) {
	full := FormatBatchResult(engine.BatchResult{Success: 3, Total: 3})
	if !strings.Contains(full, "✅") || !strings.Contains(full, "3/3") {
		t.Fatalf("unexpected full-success text: %q", full)
	}

	partial := FormatBatchResult(engine.BatchResult{
		Success: 2,
		Total:   3,
		Failures: []engine.WalletOutcome{
			{Wallet: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Err: engine.ErrTimeout},
		},
	})
	if !strings.Contains(partial, "⚠️") || !strings.Contains(partial, "2/3") {
		t.Fatalf("unexpected partial text: %q", partial)
	}
	if !strings.Contains(partial, "0xaaaaaaaa…aaaa") {
		t.Fatalf("expected shortened wallet in failure line: %q", partial)
	}
	if !strings.Contains(partial, engine.ErrTimeout.Error()) {
		t.Fatalf("expected error text in failure line: %q", partial)
	}

	none := FormatBatchResult(engine.BatchResult{Success: 0, Total: 2})
	if !strings.Contains(none, "❌") || !strings.Contains(none, "0/2") {
		t.Fatalf("unexpected all-failed text: %q", none)
	}

	empty := FormatBatchResult(engine.BatchResult{})
	if !strings.Contains(empty, "no wallets") {
		t.Fatalf("unexpected empty-batch text: %q", empty)
	}
}

func TestFormatHistory(t *testing.T) {
	if got := FormatHistory(nil); got != "History is empty." {
		t.Fatalf("empty history text: %q", got)
	}

	block := uint64(777)
	recs := []history.Record{
		{
			Hash:        "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
			FromAddr:    "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Status:      history.StatusConfirmed,
			Nonce:       12,
			BlockNum:    &block,
			SubmittedAt: time.Now(),
		},
		{
			Hash:     "0xdeadbeef",
			FromAddr: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			Status:   history.StatusFailed,
			Nonce:    3,
			ErrorMsg: "network error: connection refused",
		},
		{
			Hash:     "0xffff",
			FromAddr: "0xcccccccccccccccccccccccccccccccccccccccc",
			Status:   history.StatusPending,
			Nonce:    0,
		},
	}

	got := FormatHistory(recs)
	if !strings.Contains(got, "Last 3 attempts") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "✅ 0x12345678…cdef") {
		t.Fatalf("confirmed line wrong: %q", got)
	}
	if !strings.Contains(got, "block #777") {
		t.Fatalf("missing block number: %q", got)
	}
	if !strings.Contains(got, "❌ 0xdeadbeef") {
		t.Fatalf("failed line wrong: %q", got)
	}
	if !strings.Contains(got, "network error: connection refused") {
		t.Fatalf("missing error detail: %q", got)
	}
	if !strings.Contains(got, "⏳") {
		t.Fatalf("missing pending marker: %q", got)
	}
}

func TestShortenHex(t *testing.T) {
	if got := shortenHex("0xdeadbeef"); got != "0xdeadbeef" {
		t.Fatalf("short value changed: %q", got)
	}
	long := "0x1234567890abcdef1234"
	if got := shortenHex(long); got != "0x12345678…1234" {
		t.Fatalf("shortenHex(%q) = %q", long, got)
	}
}
