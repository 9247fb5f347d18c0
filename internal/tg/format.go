package tg

import (
	"fmt"
	"strings"

	"github.com/pvzzle/mintbot/internal/engine"
	"github.com/pvzzle/mintbot/internal/history"
)

func FormatBatchResult(res engine.BatchResult) string {
	var sb strings.Builder

	if res.Total == 0 {
		return "Nothing to mint: no wallets selected."
	}

	switch {
	case res.Success == res.Total:
		sb.WriteString(fmt.Sprintf("✅ Mint finished: %d/%d succeeded", res.Success, res.Total))
	case res.Success == 0:
		sb.WriteString(fmt.Sprintf("❌ Mint failed: 0/%d succeeded", res.Total))
	default:
		sb.WriteString(fmt.Sprintf("⚠️ Mint finished: %d/%d succeeded", res.Success, res.Total))
	}

	for _, f := range res.Failures {
		sb.WriteString(fmt.Sprintf("\n• %s: %s", shortenHex(f.Wallet), engine.TruncateError(f.Err)))
	}
	return sb.String()
}

func FormatHistory(recs []history.Record) string {
	if len(recs) == 0 {
		return "History is empty."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕘 Last %d attempts\n\n", len(recs)))

	for _, r := range recs {
		status := "⏳"
		switch r.Status {
		case history.StatusConfirmed:
			status = "✅"
		case history.StatusFailed:
			status = "❌"
		}

		line := fmt.Sprintf("• %s %s from %s nonce %d",
			status, shortenHex(r.Hash), shortenHex(r.FromAddr), r.Nonce)
		if r.BlockNum != nil {
			line += fmt.Sprintf(" block #%d", *r.BlockNum)
		}
		if r.ErrorMsg != "" {
			line += "\n  " + r.ErrorMsg
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func shortenHex(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
