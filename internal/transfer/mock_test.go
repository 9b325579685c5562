package transfer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const (
	testToken     = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"
	testRecipient = "0x00000000000000000000000000000000000000aa"
	testSender    = "0x00000000000000000000000000000000000000bb"
)

type mockWallet struct {
	mu sync.Mutex

	ConnectedChainFunc func(ctx context.Context) (Connection, error)
	BroadcastFunc      func(ctx context.Context, call *PreparedCall) (string, error)
	WaitFunc           func(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error)

	broadcasts []*PreparedCall
	waits      []string
}

func newMockWallet(chain ChainID) *mockWallet {
	return &mockWallet{
		ConnectedChainFunc: func(ctx context.Context) (Connection, error) {
			return Connection{Chain: chain, Account: common.HexToAddress(testSender)}, nil
		},
	}
}

func (m *mockWallet) ConnectedChain(ctx context.Context) (Connection, error) {
	return m.ConnectedChainFunc(ctx)
}

func (m *mockWallet) RequestSignatureAndBroadcast(ctx context.Context, call *PreparedCall) (string, error) {
	m.mu.Lock()
	m.broadcasts = append(m.broadcasts, call)
	m.mu.Unlock()
	if m.BroadcastFunc == nil {
		return "0xabc", nil
	}
	return m.BroadcastFunc(ctx, call)
}

func (m *mockWallet) WaitForReceipt(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error) {
	m.mu.Lock()
	m.waits = append(m.waits, txHash)
	m.mu.Unlock()
	if m.WaitFunc == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.WaitFunc(ctx, txHash, confirmations)
}

func (m *mockWallet) broadcastCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.broadcasts)
}

func (m *mockWallet) waitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waits)
}

type mockSimulator struct {
	SimulateFunc func(ctx context.Context, call *PreparedCall) error
}

func (m *mockSimulator) SimulateCall(ctx context.Context, call *PreparedCall) error {
	if m.SimulateFunc == nil {
		return nil
	}
	return m.SimulateFunc(ctx, call)
}
