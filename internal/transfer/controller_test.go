package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() TokenSummary {
	return TokenSummary{
		Address:  testToken,
		Name:     "Uniswap",
		Symbol:   "UNI",
		Decimals: 18,
		Balance:  decimal.RequireFromString("12.5"),
		Value:    decimal.RequireFromString("81.25"),
	}
}

func readyRequest() TransferRequest {
	return TransferRequest{TokenAddress: testToken, Recipient: testRecipient, Amount: big.NewInt(100)}
}

func newTestController(t *testing.T, wallet Wallet, sim Simulator, opts ...Option) *Controller {
	t.Helper()
	c := New(wallet, sim, DefaultExplorers(), opts...)
	t.Cleanup(func() {
		c.CloseDialog()
		c.Wait()
	})
	return c
}

func waitForPhase(t *testing.T, c *Controller, phase Phase) State {
	t.Helper()
	require.Eventually(t, func() bool {
		s := c.CurrentState()
		return s.Phase == phase && !s.Preparing
	}, 2*time.Second, 5*time.Millisecond, "never reached %s, last state %s", phase, c.CurrentState())
	return c.CurrentState()
}

func TestOpenWithUnsetRecipientStaysIdle(t *testing.T) {
	c := newTestController(t, newMockWallet(1), &mockSimulator{})

	c.OpenDialog(testSummary(), TransferRequest{})

	state := waitForPhase(t, c, Idle)
	assert.NoError(t, state.Hint)
	assert.Equal(t, UnsetRecipient, c.Request().Recipient)
	assert.Equal(t, testToken, c.Request().TokenAddress)
	assert.ErrorIs(t, c.ConfirmSend(), ErrNotReady)
}

func TestValidInputBecomesReady(t *testing.T) {
	c := newTestController(t, newMockWallet(1), &mockSimulator{})

	c.OpenDialog(testSummary(), NewTransferRequest(testToken))
	require.NoError(t, c.SetRecipient(testRecipient))
	assert.Equal(t, Idle, c.CurrentState().Phase)

	require.NoError(t, c.SetAmount(big.NewInt(100)))
	waitForPhase(t, c, Ready)
}

func TestInvalidRecipientHint(t *testing.T) {
	c := newTestController(t, newMockWallet(1), &mockSimulator{})

	c.OpenDialog(testSummary(), NewTransferRequest(testToken))
	require.NoError(t, c.SetAmount(big.NewInt(1)))
	require.NoError(t, c.SetRecipient("0xnot-an-address"))

	state := c.CurrentState()
	assert.Equal(t, Idle, state.Phase)
	var vErr *ValidationError
	require.ErrorAs(t, state.Hint, &vErr)
	assert.Equal(t, CodeInvalidRecipient, vErr.Code)
}

func TestHappyPathToConfirmed(t *testing.T) {
	wallet := newMockWallet(1)
	release := make(chan struct{})
	wallet.WaitFunc = func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
		<-release
		return &Receipt{TxHash: txHash, BlockNumber: 42, Confirmations: confirmations}, nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	require.NoError(t, c.ConfirmSend())
	pending := waitForPhase(t, c, Pending)
	assert.Equal(t, "0xabc", pending.TxHash)

	link, ok := c.ExplorerLink()
	require.True(t, ok)
	assert.Equal(t, "https://etherscan.io/tx/0xabc", link)

	close(release)
	confirmed := waitForPhase(t, c, Confirmed)
	assert.Equal(t, "0xabc", confirmed.TxHash)
	require.NotNil(t, confirmed.Notice)
	assert.Equal(t, NoticeSuccess, confirmed.Notice.Kind)
}

func TestUnknownChainHasNoExplorerLink(t *testing.T) {
	c := newTestController(t, newMockWallet(999999), &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	state := waitForPhase(t, c, Pending)
	assert.Equal(t, "0xabc", state.TxHash)
	link, ok := c.ExplorerLink()
	assert.False(t, ok)
	assert.Empty(t, link)
}

func TestUserRejectionReturnsToReady(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.BroadcastFunc = func(ctx context.Context, call *PreparedCall) (string, error) {
		return "", fmt.Errorf("signature prompt: %w", ErrUserRejected)
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	require.Eventually(t, func() bool {
		return c.CurrentState().Notice != nil
	}, time.Second, 5*time.Millisecond)

	state := c.CurrentState()
	assert.Equal(t, Ready, state.Phase)
	assert.Equal(t, NoticeRejected, state.Notice.Kind)
	assert.Empty(t, state.TxHash)
	assert.Equal(t, 0, wallet.waitCount())

	c.DismissNotice()
	assert.Nil(t, c.CurrentState().Notice)
	assert.NoError(t, c.ConfirmSend())
}

func TestDoubleConfirmSubmitsOnce(t *testing.T) {
	wallet := newMockWallet(1)
	release := make(chan struct{})
	wallet.BroadcastFunc = func(ctx context.Context, call *PreparedCall) (string, error) {
		<-release
		return "0xabc", nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	require.NoError(t, c.ConfirmSend())
	assert.Equal(t, AwaitingSignature, c.CurrentState().Phase)
	assert.ErrorIs(t, c.ConfirmSend(), ErrNotReady)

	close(release)
	waitForPhase(t, c, Pending)
	assert.ErrorIs(t, c.ConfirmSend(), ErrNotReady)
	assert.Equal(t, 1, wallet.broadcastCount())
}

func TestCloseDuringPendingStopsTracking(t *testing.T) {
	wallet := newMockWallet(1)
	c := New(wallet, &mockSimulator{}, DefaultExplorers())

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Pending)
	require.Eventually(t, func() bool { return wallet.waitCount() == 1 }, time.Second, 5*time.Millisecond)

	c.CloseDialog()
	c.Wait()

	state := c.CurrentState()
	assert.Equal(t, Idle, state.Phase)
	assert.Empty(t, state.TxHash)
	_, ok := c.ExplorerLink()
	assert.False(t, ok)
	assert.ErrorIs(t, c.SetRecipient(testRecipient), ErrDialogClosed)
}

func TestSimulationFailureDisablesSend(t *testing.T) {
	sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
		return &SimulationError{Reason: "ERC20: transfer amount exceeds balance"}
	}}
	c := newTestController(t, newMockWallet(1), sim)

	c.OpenDialog(testSummary(), readyRequest())
	state := waitForPhase(t, c, Idle)

	var simErr *SimulationError
	require.ErrorAs(t, state.Hint, &simErr)
	assert.ErrorIs(t, c.ConfirmSend(), ErrNotReady)
}

func TestLatestPreparationWins(t *testing.T) {
	release := make(chan struct{})
	sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
		if call.Amount.Int64() == 1 {
			<-release
			return nil
		}
		return &SimulationError{Reason: "second"}
	}}
	c := New(newMockWallet(1), sim, DefaultExplorers())
	defer func() {
		c.CloseDialog()
		c.Wait()
	}()

	req := readyRequest()
	req.Amount = big.NewInt(1)
	c.OpenDialog(testSummary(), req)
	assert.True(t, c.CurrentState().Preparing)

	require.NoError(t, c.SetAmount(big.NewInt(2)))
	state := waitForPhase(t, c, Idle)
	require.Error(t, state.Hint)

	close(release)
	c.Wait()

	state = c.CurrentState()
	assert.Equal(t, Idle, state.Phase)
	assert.Contains(t, state.Hint.Error(), "second")
}

func TestUnchangedInputDoesNotPrepareAgain(t *testing.T) {
	var mu sync.Mutex
	simulations := 0
	sim := &mockSimulator{SimulateFunc: func(ctx context.Context, call *PreparedCall) error {
		mu.Lock()
		simulations++
		mu.Unlock()
		return nil
	}}
	c := newTestController(t, newMockWallet(1), sim)

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	require.NoError(t, c.SetRecipient(testRecipient))
	require.NoError(t, c.SetAmount(big.NewInt(100)))
	assert.Equal(t, Ready, c.CurrentState().Phase)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, simulations)
}

func TestSubmissionFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason FailureReason
	}{
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), ReasonInsufficientFunds},
		{"reverted", errors.New("execution reverted: paused"), ReasonSimulationReverted},
		{"network", errors.New("dial tcp: connection refused"), ReasonNetworkError},
		{"typed", &SubmissionError{Reason: ReasonNetworkError, Err: errors.New("boom")}, ReasonNetworkError},
		{"unknown", errors.New("something odd"), ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := newMockWallet(1)
			wallet.BroadcastFunc = func(ctx context.Context, call *PreparedCall) (string, error) {
				return "", tt.err
			}
			c := newTestController(t, wallet, &mockSimulator{})

			c.OpenDialog(testSummary(), readyRequest())
			waitForPhase(t, c, Ready)
			require.NoError(t, c.ConfirmSend())

			state := waitForPhase(t, c, Failed)
			assert.Equal(t, tt.reason, state.Reason)
			assert.NotEmpty(t, state.Detail)
			assert.ErrorIs(t, c.SetAmount(big.NewInt(5)), ErrTransferLocked)
		})
	}
}

func TestRevertedReceiptThenReset(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.WaitFunc = func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
		return &Receipt{TxHash: txHash, Reverted: true}, nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	state := waitForPhase(t, c, Failed)
	assert.Equal(t, ReasonReverted, state.Reason)
	assert.Equal(t, "0xabc", state.TxHash)

	require.NoError(t, c.Reset())
	waitForPhase(t, c, Ready)
	assert.Equal(t, testRecipient, c.Request().Recipient)
}

func TestDroppedTransaction(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.WaitFunc = func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
		return nil, fmt.Errorf("tx %s: %w", txHash, ErrDropped)
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	assert.Equal(t, ReasonDropped, waitForPhase(t, c, Failed).Reason)
}

func TestConfirmedResetClearsInput(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.WaitFunc = func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
		return &Receipt{TxHash: txHash}, nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Confirmed)

	c.DismissNotice()
	state := c.CurrentState()
	assert.Equal(t, Confirmed, state.Phase)
	assert.Nil(t, state.Notice)

	require.NoError(t, c.Reset())
	state = waitForPhase(t, c, Idle)
	assert.NoError(t, state.Hint)
	assert.Equal(t, UnsetRecipient, c.Request().Recipient)
}

func TestLongPendingIsNotFailure(t *testing.T) {
	c := newTestController(t, newMockWallet(1), &mockSimulator{}, WithLongPendingAfter(20*time.Millisecond))

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	require.Eventually(t, func() bool {
		return c.CurrentState().LongPending
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Pending, c.CurrentState().Phase)
}

func TestTrackTimeout(t *testing.T) {
	c := newTestController(t, newMockWallet(1), &mockSimulator{}, WithTrackTimeout(30*time.Millisecond))

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())

	assert.Equal(t, ReasonTimeout, waitForPhase(t, c, Failed).Reason)
}

func TestStaleCallIsPreparedAgain(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	wallet := newMockWallet(1)
	c := newTestController(t, wallet, &mockSimulator{}, WithClock(clock), WithStaleAfter(time.Minute))

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	assert.ErrorIs(t, c.ConfirmSend(), ErrStaleCall)
	assert.Equal(t, 0, wallet.broadcastCount())

	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Pending)
}

func TestWalletDisconnectedIsNotReady(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.ConnectedChainFunc = func(ctx context.Context) (Connection, error) {
		return Connection{}, errors.New("no account unlocked")
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	state := waitForPhase(t, c, Idle)
	assert.Error(t, state.Hint)
}

func TestSubscribeObservesTransitions(t *testing.T) {
	wallet := newMockWallet(1)
	wallet.WaitFunc = func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
		return &Receipt{TxHash: txHash}, nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	states, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Confirmed)

	var phases []Phase
	for len(states) > 0 {
		s := <-states
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	}
	assert.Equal(t, []Phase{Idle, Ready, AwaitingSignature, Pending, Confirmed}, phases)
}

func TestTokenSummaryText(t *testing.T) {
	token := testSummary()
	assert.Equal(t, "Send Uniswap (UNI)", token.Title())
	assert.Equal(t, "You have 12.5 UNI worth $81.25", token.Holdings())
	assert.Equal(t, "UN", token.Initials())

	token.Name = "Wrapped Ether"
	assert.Equal(t, "WE", token.Initials())
	token.Name = ""
	assert.Equal(t, "UN", token.Initials())
}

// switchableWallet reports whichever chain the test last switched to.
func switchableWallet(chain ChainID) (*mockWallet, func(ChainID)) {
	var mu sync.Mutex
	wallet := newMockWallet(chain)
	wallet.ConnectedChainFunc = func(ctx context.Context) (Connection, error) {
		mu.Lock()
		defer mu.Unlock()
		return Connection{Chain: chain, Account: common.HexToAddress(testSender)}, nil
	}
	return wallet, func(next ChainID) {
		mu.Lock()
		defer mu.Unlock()
		chain = next
	}
}

func TestChainChangedPreparesAgain(t *testing.T) {
	wallet, switchTo := switchableWallet(1)
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	switchTo(137)
	c.ChainChanged()

	state := waitForPhase(t, c, Ready)
	require.NotNil(t, state.Notice)
	assert.Equal(t, NoticeChainChanged, state.Notice.Kind)

	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Pending)
	wallet.mu.Lock()
	assert.Equal(t, ChainID(137), wallet.broadcasts[0].Chain)
	wallet.mu.Unlock()

	link, ok := c.ExplorerLink()
	require.True(t, ok)
	assert.Equal(t, "https://polygonscan.com/tx/0xabc", link)
}

func TestChainChangedIgnoredWhilePending(t *testing.T) {
	wallet, switchTo := switchableWallet(1)
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)
	require.NoError(t, c.ConfirmSend())
	waitForPhase(t, c, Pending)

	switchTo(5)
	c.ChainChanged()
	state := c.CurrentState()
	assert.Equal(t, Pending, state.Phase)
	assert.Nil(t, state.Notice)
}

func TestWrongChainAtSubmitPreparesAgain(t *testing.T) {
	wallet, switchTo := switchableWallet(1)
	var calls int
	wallet.BroadcastFunc = func(ctx context.Context, call *PreparedCall) (string, error) {
		calls++
		if calls == 1 {
			switchTo(5)
			return "", fmt.Errorf("call prepared for chain 1 but node is on chain 5: %w", ErrChainChanged)
		}
		return "0xdef", nil
	}
	c := newTestController(t, wallet, &mockSimulator{})

	c.OpenDialog(testSummary(), readyRequest())
	waitForPhase(t, c, Ready)

	require.NoError(t, c.ConfirmSend())
	state := waitForPhase(t, c, Ready)
	require.NotNil(t, state.Notice)
	assert.Equal(t, NoticeChainChanged, state.Notice.Kind)
	assert.Equal(t, 1, wallet.broadcastCount())

	require.NoError(t, c.ConfirmSend())
	pending := waitForPhase(t, c, Pending)
	assert.Equal(t, "0xdef", pending.TxHash)
	wallet.mu.Lock()
	assert.Equal(t, ChainID(5), wallet.broadcasts[1].Chain)
	wallet.mu.Unlock()
}
