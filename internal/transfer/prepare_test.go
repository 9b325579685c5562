package transfer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnection() Connection {
	return Connection{Chain: 1, Account: common.HexToAddress(testSender)}
}

func TestValidate(t *testing.T) {
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 256)

	tests := []struct {
		name string
		req  TransferRequest
		code ValidationCode
	}{
		{"fresh request", NewTransferRequest(testToken), CodeRecipientUnset},
		{"empty recipient", TransferRequest{TokenAddress: testToken, Recipient: "", Amount: big.NewInt(1)}, CodeRecipientUnset},
		{"malformed recipient", TransferRequest{TokenAddress: testToken, Recipient: "0x123", Amount: big.NewInt(1)}, CodeInvalidRecipient},
		{"recipient with bad checksum", TransferRequest{TokenAddress: testToken, Recipient: "0x52908400098527886e0F7030069857D2E4169EE7", Amount: big.NewInt(1)}, CodeBadChecksum},
		{"token with bad checksum", TransferRequest{TokenAddress: "0x1f9840a85d5Af5bf1D1762F925BDADdC4201F984", Recipient: testRecipient, Amount: big.NewInt(1)}, CodeInvalidToken},
		{"malformed token", TransferRequest{TokenAddress: "token", Recipient: testRecipient, Amount: big.NewInt(1)}, CodeInvalidToken},
		{"zero amount", TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(0)}, CodeZeroAmount},
		{"nil amount", TransferRequest{TokenAddress: testToken, Recipient: testRecipient}, CodeZeroAmount},
		{"negative amount", TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(-5)}, CodeZeroAmount},
		{"amount above uint256", TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: tooLarge}, CodeAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.code, vErr.Code)
			assert.False(t, tt.req.Submittable())
		})
	}

	valid := TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(1)}
	assert.NoError(t, valid.Validate())
	assert.True(t, valid.Submittable())
}

func TestValidateChecksum(t *testing.T) {
	for _, recipient := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0x52908400098527886E0F7030069857D2E4169EE7",
		"0x52908400098527886e0f7030069857d2e4169ee7",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	} {
		req := TransferRequest{TokenAddress: testToken, Recipient: recipient, Amount: big.NewInt(1)}
		assert.NoError(t, req.Validate(), recipient)
	}

	req := TransferRequest{TokenAddress: testToken, Recipient: "0x5aAeb6053f3E94C9b9A09f33669435E7Ef1BeAed", Amount: big.NewInt(1)}
	var vErr *ValidationError
	require.ErrorAs(t, req.Validate(), &vErr)
	assert.Equal(t, CodeBadChecksum, vErr.Code)
	assert.Equal(t, "recipient", vErr.Field)
}

func TestUnsetRecipientIsNeverValid(t *testing.T) {
	assert.False(t, common.IsHexAddress(UnsetRecipient))
	assert.False(t, NewTransferRequest(testToken).RecipientSet())
	assert.Equal(t, 0, NewTransferRequest(testToken).Amount.Sign())
}

func TestEncodeDecodeTransfer(t *testing.T) {
	recipient := common.HexToAddress(testRecipient)
	amount, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	data, err := EncodeTransfer(recipient, amount)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
	assert.Len(t, data, 4+32+32)

	gotRecipient, gotAmount, err := DecodeTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, recipient, gotRecipient)
	assert.Equal(t, 0, amount.Cmp(gotAmount))

	_, _, err = DecodeTransfer([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestDecodeTransferResult(t *testing.T) {
	ok, err := DecodeTransferResult(nil)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := ERC20.Methods["transfer"].Outputs.Pack(false)
	require.NoError(t, err)
	ok, err = DecodeTransferResult(out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrepare(t *testing.T) {
	t.Run("unset recipient has no hint", func(t *testing.T) {
		p := NewPreparer(&mockSimulator{})
		prep := p.Prepare(context.Background(), testConnection(), NewTransferRequest(testToken))
		assert.False(t, prep.Ready())
		assert.NoError(t, prep.Hint)
	})

	t.Run("invalid input is not simulated", func(t *testing.T) {
		sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
			t.Fatal("simulation must not run for invalid input")
			return nil
		}}
		req := TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(0)}
		prep := NewPreparer(sim).Prepare(context.Background(), testConnection(), req)
		assert.False(t, prep.Ready())
		var vErr *ValidationError
		assert.ErrorAs(t, prep.Hint, &vErr)
	})

	t.Run("simulation revert becomes a hint", func(t *testing.T) {
		sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
			return &SimulationError{Reason: "ERC20: transfer amount exceeds balance"}
		}}
		req := TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(10)}
		prep := NewPreparer(sim).Prepare(context.Background(), testConnection(), req)
		assert.False(t, prep.Ready())
		var simErr *SimulationError
		require.ErrorAs(t, prep.Hint, &simErr)
		assert.Contains(t, simErr.Error(), "exceeds balance")
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
			return errors.New("connection refused")
		}}
		req := TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(10)}
		prep := NewPreparer(sim).Prepare(context.Background(), testConnection(), req)
		var simErr *SimulationError
		require.ErrorAs(t, prep.Hint, &simErr)
		assert.EqualError(t, simErr.Cause, "connection refused")
	})

	t.Run("valid input yields a call", func(t *testing.T) {
		var simulated *PreparedCall
		sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
			simulated = call
			return nil
		}}
		req := TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(10)}
		prep := NewPreparer(sim).Prepare(context.Background(), testConnection(), req)
		require.True(t, prep.Ready())
		assert.Same(t, simulated, prep.Call)
		assert.Equal(t, ChainID(1), prep.Call.Chain)
		assert.Equal(t, common.HexToAddress(testToken), prep.Call.Token)
		assert.Equal(t, common.HexToAddress(testSender), prep.Call.From)

		recipient, amount, err := DecodeTransfer(prep.Call.Data)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testRecipient), recipient)
		assert.Equal(t, int64(10), amount.Int64())

		req.Amount.SetInt64(99)
		assert.Equal(t, int64(10), prep.Call.Amount.Int64())
	})
}
