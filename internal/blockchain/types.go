package blockchain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"rhystmorgan/tokenSend/internal/transfer"
)

type Network string

const (
	EVM     Network = "evm"
	VeChain Network = "vechain"
)

// Explorers returns the explorer table for chains of this network.
func (n Network) Explorers() transfer.Explorers {
	if n == VeChain {
		return transfer.VeChainExplorers()
	}
	return transfer.DefaultExplorers()
}

type Config struct {
	Network           Network
	NodeURL           string
	ChainID           uint64
	Timeout           time.Duration
	RetryCount        int
	RetryDelay        time.Duration
	PollInterval      time.Duration
	RequestsPerSecond float64
	DropAfter         int
	CacheTTL          time.Duration
}

// Approver stands in for the wallet's signing popup. It returns the key for
// call.From once the user approves, or transfer.ErrUserRejected.
type Approver interface {
	Approve(ctx context.Context, call *transfer.PreparedCall) (*ecdsa.PrivateKey, error)
}

type ApproverFunc func(ctx context.Context, call *transfer.PreparedCall) (*ecdsa.PrivateKey, error)

func (f ApproverFunc) Approve(ctx context.Context, call *transfer.PreparedCall) (*ecdsa.PrivateKey, error) {
	return f(ctx, call)
}

type TokenInfo struct {
	Name      string
	Symbol    string
	Decimals  uint8
	Balance   *big.Int
	FetchedAt time.Time
}

type ErrorType string

const (
	ErrNetworkConnection ErrorType = "network_connection"
	ErrInvalidAddress    ErrorType = "invalid_address"
	ErrInsufficientFunds ErrorType = "insufficient_funds"
	ErrTransactionFailed ErrorType = "transaction_failed"
	ErrExecutionReverted ErrorType = "execution_reverted"
	ErrUserRejected      ErrorType = "user_rejected"
	ErrWrongChain        ErrorType = "wrong_chain"
	ErrNodeUnavailable   ErrorType = "node_unavailable"
	ErrRateLimited       ErrorType = "rate_limited"
	ErrTimeout           ErrorType = "timeout"
	ErrUnknown           ErrorType = "unknown"
)

type BlockchainError struct {
	Type    ErrorType
	Message string
	Code    int
	Cause   error
}

func (e *BlockchainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BlockchainError) Unwrap() error {
	return e.Cause
}

type NetworkStatus struct {
	Connected   bool
	NodeURL     string
	LastChecked time.Time
	BlockHeight uint64
	NetworkID   string
}
