package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

// ERC20 is the parsed ABI subset used to talk to token contracts.
var ERC20 abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	ERC20 = parsed
}

// EncodeTransfer returns the calldata for transfer(recipient, amount).
func EncodeTransfer(recipient common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("transfer", recipient, amount)
}

// DecodeTransfer is the inverse of EncodeTransfer.
func DecodeTransfer(data []byte) (common.Address, *big.Int, error) {
	method := ERC20.Methods["transfer"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, errors.New("calldata is not an erc20 transfer")
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("unpack transfer arguments: %w", err)
	}
	if len(args) != 2 {
		return common.Address{}, nil, fmt.Errorf("expected 2 transfer arguments, got %d", len(args))
	}

	recipient, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, errors.New("transfer recipient is not an address")
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, errors.New("transfer amount is not an integer")
	}
	return recipient, amount, nil
}

// DecodeTransferResult interprets the return data of a simulated transfer.
// Tokens that return nothing are treated as successful.
func DecodeTransferResult(out []byte) (bool, error) {
	if len(out) == 0 {
		return true, nil
	}
	values, err := ERC20.Unpack("transfer", out)
	if err != nil {
		return false, fmt.Errorf("unpack transfer result: %w", err)
	}
	ok, _ := values[0].(bool)
	return ok, nil
}
