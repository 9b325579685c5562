package models

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

// Standard BIP-39 test vector mnemonic.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveAccountEthereum(t *testing.T) {
	account, err := DeriveAccount(testMnemonic, EthereumPath)
	if err != nil {
		t.Fatalf("Failed to derive account: %v", err)
	}

	expected := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	if account.Address.Hex() != expected {
		t.Errorf("Expected address %s, got %s", expected, account.Address.Hex())
	}

	if crypto.PubkeyToAddress(account.PrivateKey.PublicKey) != account.Address {
		t.Error("Private key does not match derived address")
	}

	if account.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestDeriveAccountPathsDiffer(t *testing.T) {
	eth, err := DeriveAccount(testMnemonic, EthereumPath)
	if err != nil {
		t.Fatalf("Failed to derive ethereum account: %v", err)
	}
	vet, err := DeriveAccount(testMnemonic, VeChainPath)
	if err != nil {
		t.Fatalf("Failed to derive vechain account: %v", err)
	}

	if eth.Address == vet.Address {
		t.Error("Expected different addresses for different derivation paths")
	}
}

func TestDeriveAccountNormalizesMnemonic(t *testing.T) {
	messy := "  ABANDON abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon   about "

	a, err := DeriveAccount(messy, EthereumPath)
	if err != nil {
		t.Fatalf("Failed to derive account: %v", err)
	}
	b, _ := DeriveAccount(testMnemonic, EthereumPath)

	if a.Address != b.Address {
		t.Errorf("Expected %s, got %s", b.Address.Hex(), a.Address.Hex())
	}
}

func TestDeriveAccountRejectsInvalidInput(t *testing.T) {
	if _, err := DeriveAccount("not a real mnemonic", EthereumPath); err != ErrInvalidMnemonic {
		t.Errorf("Expected ErrInvalidMnemonic, got %v", err)
	}

	if _, err := DeriveAccount(testMnemonic, "m/not/a/path"); err == nil {
		t.Error("Expected error for invalid derivation path")
	}
}

func TestDerivationPath(t *testing.T) {
	if DerivationPath("vechain") != VeChainPath {
		t.Errorf("Expected VeChain path, got %s", DerivationPath("vechain"))
	}
	if DerivationPath("evm") != EthereumPath {
		t.Errorf("Expected Ethereum path, got %s", DerivationPath("evm"))
	}
}
