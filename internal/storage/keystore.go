package storage

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rhystmorgan/tokenSend/internal/models"
)

var ErrNoKeystore = errors.New("no keystore found, run 'tokensend keystore import' first")

// KeystoreFile is the on-disk layout. Only the mnemonic is encrypted.
type KeystoreFile struct {
	Address   string         `json:"address"`
	Path      string         `json:"path"`
	CreatedAt string         `json:"created_at"`
	Data      *EncryptedData `json:"data"`
}

// Keystore holds a single encrypted signing account.
type Keystore struct {
	path string
}

func NewKeystore(path string) *Keystore {
	return &Keystore{path: path}
}

func (k *Keystore) Path() string {
	return k.path
}

func (k *Keystore) Exists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Import derives the account at derivationPath and stores the mnemonic
// encrypted under password, replacing any existing keystore.
func (k *Keystore) Import(mnemonic, password, derivationPath string) (*models.Account, error) {
	if password == "" {
		return nil, errors.New("password must not be empty")
	}

	account, err := models.DeriveAccount(mnemonic, derivationPath)
	if err != nil {
		return nil, err
	}

	encrypted, err := Encrypt([]byte(models.NormalizeMnemonic(mnemonic)), password, account.Address.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mnemonic: %w", err)
	}

	file := KeystoreFile{
		Address:   account.Address.Hex(),
		Path:      derivationPath,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
		Data:      encrypted,
	}
	if err := k.save(&file); err != nil {
		return nil, err
	}
	return account, nil
}

func (k *Keystore) Address() (common.Address, error) {
	file, err := k.load()
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(file.Address), nil
}

// Unlock decrypts the mnemonic and derives the signing key.
func (k *Keystore) Unlock(password string) (*ecdsa.PrivateKey, error) {
	file, err := k.load()
	if err != nil {
		return nil, err
	}

	address := common.HexToAddress(file.Address)
	mnemonic, err := Decrypt(file.Data, password, address.Bytes())
	if err != nil {
		return nil, err
	}

	account, err := models.DeriveAccount(string(mnemonic), file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	if account.Address != address {
		return nil, fmt.Errorf("keystore address %s does not match derived %s", address.Hex(), account.Address.Hex())
	}
	return account.PrivateKey, nil
}

func (k *Keystore) load() (*KeystoreFile, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeystore
		}
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var file KeystoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore: %w", err)
	}
	if !common.IsHexAddress(file.Address) || file.Data == nil {
		return nil, errors.New("keystore is corrupted")
	}
	return &file, nil
}

func (k *Keystore) save(file *KeystoreFile) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}

	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return os.Rename(tmp, k.path)
}
