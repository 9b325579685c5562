package utils

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// FormatAddress truncates an address for display purposes
func FormatAddress(address string, prefixLen, suffixLen int) string {
	if len(address) <= prefixLen+suffixLen {
		return address
	}

	return address[:prefixLen] + "..." + address[len(address)-suffixLen:]
}

// FormatTransactionID formats a transaction ID for display
func FormatTransactionID(txID string) string {
	if len(txID) <= 16 {
		return txID
	}
	return txID[:8] + "..." + txID[len(txID)-8:]
}

// FormatTokenAmount renders a base-unit amount in human units with the
// token symbol, trimming trailing zeros.
func FormatTokenAmount(amount *big.Int, decimals int32, symbol string) string {
	if amount == nil {
		amount = new(big.Int)
	}
	value := decimal.NewFromBigInt(amount, -decimals)
	if symbol == "" {
		return value.String()
	}
	return fmt.Sprintf("%s %s", value.String(), symbol)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

// TruncateString truncates a string to a maximum length with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return s[:maxLen]
	}

	return s[:maxLen-3] + "..."
}
