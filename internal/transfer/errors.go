package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserRejected   = errors.New("user rejected the request")
	ErrDropped        = errors.New("transaction dropped")
	ErrNotReady       = errors.New("transfer is not ready to send")
	ErrStaleCall      = errors.New("prepared call is stale, preparing again")
	ErrTransferLocked = errors.New("transfer in progress")
	ErrDialogClosed   = errors.New("dialog is closed")
	// ErrChainChanged reports that the wallet is no longer on the chain a
	// call was prepared for.
	ErrChainChanged = errors.New("wallet switched networks")
)

type FailureReason string

const (
	ReasonUserRejected       FailureReason = "user_rejected"
	ReasonInsufficientFunds  FailureReason = "insufficient_funds"
	ReasonSimulationReverted FailureReason = "simulation_reverted"
	ReasonNetworkError       FailureReason = "network_error"
	ReasonUnknown            FailureReason = "unknown"
	ReasonReverted           FailureReason = "reverted"
	ReasonDropped            FailureReason = "dropped"
	ReasonTimeout            FailureReason = "timeout"
)

func (r FailureReason) Message() string {
	switch r {
	case ReasonUserRejected:
		return "Request rejected in wallet."
	case ReasonInsufficientFunds:
		return "Insufficient funds for this transfer."
	case ReasonSimulationReverted:
		return "The transfer would revert."
	case ReasonNetworkError:
		return "Network error. Please check your connection."
	case ReasonReverted:
		return "Transaction reverted on chain."
	case ReasonDropped:
		return "Transaction was dropped by the network."
	case ReasonTimeout:
		return "Gave up waiting for confirmation."
	default:
		return "An unexpected error occurred."
	}
}

type ValidationCode string

const (
	CodeRecipientUnset   ValidationCode = "RECIPIENT_UNSET"
	CodeInvalidRecipient ValidationCode = "INVALID_RECIPIENT"
	CodeInvalidToken     ValidationCode = "INVALID_TOKEN"
	CodeZeroAmount       ValidationCode = "ZERO_AMOUNT"
	CodeAmountTooLarge   ValidationCode = "AMOUNT_TOO_LARGE"
	CodeBadChecksum      ValidationCode = "BAD_CHECKSUM"
)

type ValidationError struct {
	Field   string
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SimulationError means the call would not succeed against current chain state.
type SimulationError struct {
	Reason string
	Cause  error
}

func (e *SimulationError) Error() string {
	if e.Reason == "" && e.Cause != nil {
		return "simulation failed: " + e.Cause.Error()
	}
	return "simulation failed: " + e.Reason
}

func (e *SimulationError) Unwrap() error {
	return e.Cause
}

type SubmissionError struct {
	Reason FailureReason
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Reasoner is implemented by collaborator errors that know their own failure reason.
type Reasoner interface {
	FailureReason() FailureReason
}

// Classify maps an error returned by a wallet to a failure reason.
func Classify(err error) FailureReason {
	if err == nil {
		return ""
	}

	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Reason
	}
	var reasoner Reasoner
	if errors.As(err, &reasoner) {
		return reasoner.FailureReason()
	}

	switch {
	case errors.Is(err, ErrUserRejected):
		return ReasonUserRejected
	case errors.Is(err, ErrDropped):
		return ReasonDropped
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}
	var simErr *SimulationError
	if errors.As(err, &simErr) {
		return ReasonSimulationReverted
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "user rejected") || strings.Contains(errStr, "user denied"):
		return ReasonUserRejected
	case strings.Contains(errStr, "insufficient funds") || strings.Contains(errStr, "insufficient balance"):
		return ReasonInsufficientFunds
	case strings.Contains(errStr, "execution reverted") || strings.Contains(errStr, "revert"):
		return ReasonSimulationReverted
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "eof"):
		return ReasonNetworkError
	default:
		return ReasonUnknown
	}
}
