package blockchain

import (
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"

	"rhystmorgan/tokenSend/internal/transfer"
)

func NewBlockchainError(errType ErrorType, message string, cause error) *BlockchainError {
	return &BlockchainError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

func NewNetworkError(message string, cause error) *BlockchainError {
	return NewBlockchainError(ErrNetworkConnection, message, cause)
}

func NewInsufficientFundsError(required, available *big.Int, asset string) *BlockchainError {
	return NewBlockchainError(ErrInsufficientFunds,
		fmt.Sprintf("insufficient %s: required %s, available %s", asset, required.String(), available.String()), nil)
}

func NewTimeoutError(operation string, cause error) *BlockchainError {
	return NewBlockchainError(ErrTimeout, fmt.Sprintf("%s timed out", operation), cause)
}

func NewNodeUnavailableError(nodeURL string, cause error) *BlockchainError {
	return NewBlockchainError(ErrNodeUnavailable,
		fmt.Sprintf("node unavailable: %s", nodeURL), cause)
}

func NewRateLimitedError(cause error) *BlockchainError {
	return NewBlockchainError(ErrRateLimited, "rate limited by node", cause)
}

// NewWrongChainError wraps transfer.ErrChainChanged so the controller
// prepares the call again instead of failing it.
func NewWrongChainError(want, got transfer.ChainID) *BlockchainError {
	return NewBlockchainError(ErrWrongChain,
		fmt.Sprintf("call prepared for chain %s but node is on chain %s", want, got), transfer.ErrChainChanged)
}

func ClassifyError(err error) *BlockchainError {
	if err == nil {
		return nil
	}

	var blockchainErr *BlockchainError
	if errors.As(err, &blockchainErr) {
		return blockchainErr
	}
	if errors.Is(err, transfer.ErrUserRejected) {
		return NewBlockchainError(ErrUserRejected, "request rejected", err)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return NewTimeoutError("network request", err)
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return NewNetworkError("connection failed", err)
	case strings.Contains(errStr, "invalid address") || strings.Contains(errStr, "bad address"):
		return NewBlockchainError(ErrInvalidAddress, "invalid address format", err)
	case strings.Contains(errStr, "insufficient") || strings.Contains(errStr, "not enough"):
		return NewBlockchainError(ErrInsufficientFunds, "insufficient funds", err)
	case strings.Contains(errStr, "execution reverted") || strings.Contains(errStr, "reverted"):
		return NewBlockchainError(ErrExecutionReverted, "execution reverted", err)
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests"):
		return NewRateLimitedError(err)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				return NewTimeoutError("network operation", err)
			}
			return NewNetworkError("network error", err)
		}
		return NewBlockchainError(ErrUnknown, "unexpected node error", err)
	}
}

func (e *BlockchainError) IsRetryable() bool {
	switch e.Type {
	case ErrNetworkConnection, ErrNodeUnavailable, ErrTimeout, ErrRateLimited:
		return true
	default:
		return false
	}
}

// FailureReason lets the transfer controller classify node errors.
func (e *BlockchainError) FailureReason() transfer.FailureReason {
	switch e.Type {
	case ErrUserRejected:
		return transfer.ReasonUserRejected
	case ErrInsufficientFunds:
		return transfer.ReasonInsufficientFunds
	case ErrExecutionReverted:
		return transfer.ReasonSimulationReverted
	case ErrNetworkConnection, ErrNodeUnavailable, ErrRateLimited, ErrTimeout:
		return transfer.ReasonNetworkError
	default:
		return transfer.ReasonUnknown
	}
}

func (e *BlockchainError) UserMessage() string {
	switch e.Type {
	case ErrNetworkConnection:
		return "Network connection failed. Please check your internet connection."
	case ErrInvalidAddress:
		return "Invalid address format."
	case ErrInsufficientFunds:
		return "Insufficient funds for this transaction."
	case ErrTransactionFailed:
		return "Transaction failed to process."
	case ErrExecutionReverted:
		return "The token contract rejected this transfer."
	case ErrUserRejected:
		return "Request rejected in wallet."
	case ErrWrongChain:
		return "The wallet switched networks. Please review the transfer again."
	case ErrNodeUnavailable:
		return "The network is temporarily unavailable."
	case ErrRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case ErrTimeout:
		return "Request timed out. Please try again."
	default:
		return "An unexpected error occurred."
	}
}
