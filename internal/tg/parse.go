package tg

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const maxWalletCount = 50

var (
	reEthAddr = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

	ErrInvalidWalletCount = errors.New("invalid wallet count")
)

func IsEthAddress(s string) bool {
	s = strings.TrimSpace(s)
	return reEthAddr.MatchString(s)
}

// ParseWalletCount parses how many wallets a batch should use (1..50).
func ParseWalletCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxWalletCount {
		return 0, ErrInvalidWalletCount
	}
	return n, nil
}
