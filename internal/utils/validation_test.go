package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     PasswordStrength
	}{
		{"Str0ng!Passw0rd", PasswordStrong},
		{"Str0ngPassw0rd", PasswordMedium},
		{"password", PasswordWeak},
		{"Ab1!", PasswordWeak},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			got, issues := ValidatePassword(tt.password)
			assert.Equal(t, tt.want, got, "issues: %v", issues)
			if tt.want == PasswordStrong {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestUnknownMnemonicWords(t *testing.T) {
	valid := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	assert.Empty(t, UnknownMnemonicWords(valid))
	assert.Equal(t, []string{"abandn", "zzz"}, UnknownMnemonicWords("Abandon abandn ABOUT zzz"))
}
