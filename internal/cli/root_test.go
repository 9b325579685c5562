package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhystmorgan/tokenSend/internal/models"
	"rhystmorgan/tokenSend/internal/storage"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"NODE_URL", "CHAIN_ID", "TOKEN", "KEYSTORE", "AUDIT_DIR", "LOG_LEVEL", "LOG_FILE", "DEBUG"} {
		t.Setenv("TOKENSEND_"+key, "")
	}
	t.Setenv("TOKENSEND_NETWORK", "vechain")
	keystore := filepath.Join(home, "keystore.json")
	t.Setenv("TOKENSEND_KEYSTORE", keystore)
	return keystore
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeystoreAddress(t *testing.T) {
	path := isolate(t)

	_, err := execute(t, "", "keystore", "address")
	require.ErrorIs(t, err, storage.ErrNoKeystore)

	_, err = storage.NewKeystore(path).Import(testMnemonic, "Str0ng!Passw0rd", models.EthereumPath)
	require.NoError(t, err)

	out, err := execute(t, "", "keystore", "address")
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94\n", out)
}

func TestKeystoreImportRefusesOverwrite(t *testing.T) {
	path := isolate(t)
	_, err := storage.NewKeystore(path).Import(testMnemonic, "Str0ng!Passw0rd", models.EthereumPath)
	require.NoError(t, err)

	_, err = execute(t, testMnemonic, "keystore", "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestKeystoreImportRejectsUnknownWords(t *testing.T) {
	isolate(t)

	_, err := execute(t, "abandon abandn about", "keystore", "import")
	require.ErrorIs(t, err, models.ErrInvalidMnemonic)
	assert.Contains(t, err.Error(), "abandn")
}

func TestDialogRequiresToken(t *testing.T) {
	isolate(t)

	_, err := execute(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token address is required")
}

func TestDialogRejectsBadDecimals(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--token", "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", "--decimals", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimals")
}

func TestReadMnemonic(t *testing.T) {
	got, err := readMnemonic(strings.NewReader("  "+testMnemonic+"\n\n"), false)
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)

	got, err = readMnemonic(strings.NewReader(testMnemonic+"\nignored"), true)
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)
}
