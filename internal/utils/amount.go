package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount    = errors.New("amount cannot be empty")
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// ParseAmount converts a human amount such as "1.5" into token base units.
// Zero is accepted here; the transfer rules reject it later with a hint.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAmount
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %q", s)
	}
	if value.IsNegative() {
		return nil, ErrNegativeAmount
	}

	shifted := value.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount cannot have more than %d decimal places", decimals)
	}
	return shifted.BigInt(), nil
}
