package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// UnsetRecipient is the recipient of a fresh request. It is never a valid address.
const UnsetRecipient = "0x"

type ChainID uint64

func (c ChainID) String() string {
	return fmt.Sprintf("%d", uint64(c))
}

// TransferRequest is the user's intent as entered in the dialog.
type TransferRequest struct {
	TokenAddress string
	Recipient    string
	Amount       *big.Int
}

func NewTransferRequest(tokenAddress string) TransferRequest {
	return TransferRequest{
		TokenAddress: tokenAddress,
		Recipient:    UnsetRecipient,
		Amount:       new(big.Int),
	}
}

func (r TransferRequest) RecipientSet() bool {
	return strings.TrimSpace(r.Recipient) != "" && r.Recipient != UnsetRecipient
}

// Submittable reports whether the request passes local validation.
func (r TransferRequest) Submittable() bool {
	return r.Validate() == nil
}

func (r TransferRequest) clone() TransferRequest {
	out := r
	if r.Amount != nil {
		out.Amount = new(big.Int).Set(r.Amount)
	}
	return out
}

// TokenSummary is display context for the token being sent. The dialog never mutates it.
type TokenSummary struct {
	Address  string
	Name     string
	Symbol   string
	IconURL  string
	Decimals int32
	Balance  decimal.Decimal
	Value    decimal.Decimal
}

func (t TokenSummary) Title() string {
	return fmt.Sprintf("Send %s (%s)", t.Name, t.Symbol)
}

func (t TokenSummary) Holdings() string {
	return fmt.Sprintf("You have %s %s worth $%s", t.Balance.String(), t.Symbol, t.Value.StringFixed(2))
}

// Initials is shown in place of the token icon when none is available.
func (t TokenSummary) Initials() string {
	words := strings.Fields(t.Name)
	switch len(words) {
	case 0:
		if t.Symbol == "" {
			return "?"
		}
		return strings.ToUpper(firstRunes(t.Symbol, 2))
	case 1:
		return strings.ToUpper(firstRunes(words[0], 2))
	default:
		return strings.ToUpper(firstRunes(words[0], 1) + firstRunes(words[1], 1))
	}
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		n = len(r)
	}
	return string(r[:n])
}

// Connection describes the wallet's current account and network.
type Connection struct {
	Chain   ChainID
	Account common.Address
}

// PreparedCall is a validated, encoded and simulated ERC-20 transfer ready for signing.
type PreparedCall struct {
	Chain      ChainID
	From       common.Address
	Token      common.Address
	Recipient  common.Address
	Amount     *big.Int
	Data       []byte
	PreparedAt time.Time
	// Gas is the gas limit measured by the simulator, or zero when the
	// wallet estimates it at signing time.
	Gas uint64

	seq uint64
}

// Receipt is the confirmation outcome reported by the wallet.
type Receipt struct {
	TxHash        string
	BlockNumber   uint64
	Reverted      bool
	Confirmations uint64
}

type Wallet interface {
	ConnectedChain(ctx context.Context) (Connection, error)
	RequestSignatureAndBroadcast(ctx context.Context, call *PreparedCall) (string, error)
	// WaitForReceipt blocks until the transaction has the requested number of
	// confirmations, is known to have failed, or ctx is done.
	WaitForReceipt(ctx context.Context, txHash string, confirmations uint64) (*Receipt, error)
}

type Simulator interface {
	// SimulateCall executes call against current chain state without broadcasting.
	// A revert is reported as a *SimulationError. Simulators that measure gas
	// record it in call.Gas.
	SimulateCall(ctx context.Context, call *PreparedCall) error
}

type ExplorerResolver interface {
	BaseURLFor(chain ChainID) (string, bool)
}

type Phase int

const (
	Idle Phase = iota
	Ready
	AwaitingSignature
	Pending
	Confirmed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case AwaitingSignature:
		return "awaiting_signature"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether only closing or resetting the dialog leaves the phase.
func (p Phase) Terminal() bool {
	return p == Confirmed || p == Failed
}

type NoticeKind int

const (
	NoticeRejected NoticeKind = iota + 1
	NoticeSuccess
	NoticeChainChanged
)

type Notice struct {
	Kind    NoticeKind
	Message string
}

// State is a snapshot of the controller. Fields other than Phase are only
// meaningful for the phases noted.
type State struct {
	Phase Phase

	// Idle
	Preparing bool
	Hint      error

	// Pending, Confirmed
	TxHash      string
	LongPending bool

	// Failed
	Reason FailureReason
	Detail string

	Notice *Notice
}

func (s State) String() string {
	switch s.Phase {
	case Pending, Confirmed:
		return fmt.Sprintf("%s{%s}", s.Phase, s.TxHash)
	case Failed:
		return fmt.Sprintf("%s{%s}", s.Phase, s.Reason)
	default:
		return s.Phase.String()
	}
}
