package transfer

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Validate checks the request locally. An unset recipient yields a
// ValidationError with CodeRecipientUnset.
func (r TransferRequest) Validate() error {
	if !common.IsHexAddress(r.TokenAddress) || !checksumValid(r.TokenAddress) {
		return &ValidationError{Field: "token", Code: CodeInvalidToken, Message: "token address is not a valid address"}
	}

	if !r.RecipientSet() {
		return &ValidationError{Field: "recipient", Code: CodeRecipientUnset, Message: "enter a recipient address"}
	}
	if !common.IsHexAddress(r.Recipient) {
		return &ValidationError{Field: "recipient", Code: CodeInvalidRecipient, Message: "recipient is not a valid address"}
	}
	if !checksumValid(r.Recipient) {
		return &ValidationError{Field: "recipient", Code: CodeBadChecksum, Message: "recipient checksum does not match, check for typos"}
	}

	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return &ValidationError{Field: "amount", Code: CodeZeroAmount, Message: "amount must be greater than zero"}
	}
	if _, overflow := uint256.FromBig(r.Amount); overflow {
		return &ValidationError{Field: "amount", Code: CodeAmountTooLarge, Message: "amount exceeds uint256"}
	}

	return nil
}

// checksumValid reports whether a mixed-case address carries a correct
// EIP-55 checksum. All-lowercase and all-uppercase addresses carry none.
func checksumValid(address string) bool {
	body := address
	if has0xPrefix(body) {
		body = body[2:]
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return body == common.HexToAddress(address).Hex()[2:]
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
