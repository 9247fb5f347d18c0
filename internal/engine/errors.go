package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error classes for the submission pipeline. Callers match with errors.Is;
// the orchestrator is the only place that decides retry vs. surface.
var (
	ErrNetwork       = errors.New("network error")
	ErrTimeout       = errors.New("submission timed out")
	ErrNonceConflict = errors.New("nonce conflict")
	ErrFatalContract = errors.New("fatal contract error")
	ErrValidation    = errors.New("invalid input")
)

// maxErrorLen bounds failure text shown to users and written to history.
const maxErrorLen = 200

var nonceConflictMarkers = []string{
	"nonce too low",
	"nonce is too low",
	"invalid nonce",
	"already known",
	"replacement transaction underpriced",
}

var fatalMarkers = []string{
	"max supply",
	"supply cap",
	"sold out",
	"mint closed",
	"mint is not active",
	"method not found",
	"function selector was not recognized",
}

// Classify folds a raw broadcast error into one of the engine error classes
// based on the node's error text. Already-classified errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNonceConflict),
		errors.Is(err, ErrFatalContract),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNetwork):
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range nonceConflictMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrNonceConflict, err)
		}
	}
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrFatalContract, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Retryable reports whether the orchestrator should attempt again.
// Everything except fatal contract failures and input validation is
// considered transient.
func Retryable(err error) bool {
	return !errors.Is(err, ErrFatalContract) && !errors.Is(err, ErrValidation)
}

// TruncateError renders err as a user-facing message bounded in length.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) <= maxErrorLen {
		return msg
	}
	return string(runes[:maxErrorLen]) + "…"
}
