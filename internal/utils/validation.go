package utils

import (
	"strings"
	"unicode"

	"github.com/tyler-smith/go-bip39"
)

// PasswordStrength represents the strength level of a password
type PasswordStrength int

const (
	PasswordWeak PasswordStrength = iota
	PasswordMedium
	PasswordStrong
)

func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "weak"
	case PasswordMedium:
		return "medium"
	default:
		return "strong"
	}
}

// ValidatePassword checks password strength and returns validation result
func ValidatePassword(password string) (PasswordStrength, []string) {
	var issues []string
	strength := PasswordStrong

	if len(password) < 8 {
		issues = append(issues, "Password must be at least 8 characters long")
		strength = PasswordWeak
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	missing := func(ok bool, issue string) {
		if ok {
			return
		}
		issues = append(issues, issue)
		if strength == PasswordStrong {
			strength = PasswordMedium
		}
	}
	missing(hasUpper, "Password must contain at least one uppercase letter")
	missing(hasLower, "Password must contain at least one lowercase letter")
	missing(hasDigit, "Password must contain at least one number")
	missing(hasSpecial, "Password should contain at least one special character")

	if len(issues) > 2 {
		strength = PasswordWeak
	}

	return strength, issues
}

// UnknownMnemonicWords returns the words that are not in the BIP39 wordlist.
func UnknownMnemonicWords(mnemonic string) []string {
	known := make(map[string]bool, 2048)
	for _, word := range bip39.GetWordList() {
		known[word] = true
	}

	var unknown []string
	for _, word := range strings.Fields(strings.ToLower(mnemonic)) {
		if !known[word] {
			unknown = append(unknown, word)
		}
	}
	return unknown
}
