package models

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darrenvechain/thorgo/crypto/hdwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip39"
)

const (
	EthereumPath = "m/44'/60'/0'/0/0"
	VeChainPath  = "m/44'/818'/0'/0/0"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

// Account is a signing account derived from a mnemonic. Only Address and
// Path are safe to persist in the clear.
type Account struct {
	Address    common.Address    `json:"address"`
	Path       string            `json:"path"`
	CreatedAt  time.Time         `json:"created_at"`
	PrivateKey *ecdsa.PrivateKey `json:"-"`
}

// DerivationPath returns the default BIP-44 path for a network kind.
func DerivationPath(network string) string {
	if network == "vechain" {
		return VeChainPath
	}
	return EthereumPath
}

func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// DeriveAccount derives the key at path from mnemonic.
func DeriveAccount(mnemonic, path string) (*Account, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	derivationPath, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("parse derivation path %q: %w", path, err)
	}

	hdWallet, err := hdwallet.FromMnemonicAt(mnemonic, derivationPath)
	if err != nil {
		return nil, err
	}

	privateKey, err := hdWallet.PrivateKey()
	if err != nil {
		return nil, err
	}

	return &Account{
		Address:    hdWallet.Address(),
		Path:       path,
		CreatedAt:  time.Now(),
		PrivateKey: privateKey,
	}, nil
}
