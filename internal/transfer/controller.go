package transfer

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	DefaultConfirmations    = 1
	DefaultLongPendingAfter = 2 * time.Minute
	DefaultStaleAfter       = 30 * time.Second

	subscriberBuffer = 16
)

type Option func(*Controller)

func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithConfirmations(n uint64) Option {
	return func(c *Controller) {
		if n > 0 {
			c.confirmations = n
		}
	}
}

// WithLongPendingAfter sets how long a transaction may stay pending before it
// is flagged as long pending. Zero disables the flag.
func WithLongPendingAfter(d time.Duration) Option {
	return func(c *Controller) { c.longPendingAfter = d }
}

// WithTrackTimeout bounds confirmation tracking. Zero tracks until the dialog closes.
func WithTrackTimeout(d time.Duration) Option {
	return func(c *Controller) { c.trackTimeout = d }
}

// WithStaleAfter sets the age at which a prepared call must be prepared
// again before it can be sent. Zero disables the check.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Controller) { c.staleAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
		c.preparer.now = now
	}
}

// Controller drives one token transfer dialog from input through confirmation.
// All methods are safe for concurrent use.
type Controller struct {
	wallet    Wallet
	preparer  *Preparer
	explorers ExplorerResolver
	logger    *log.Logger

	confirmations    uint64
	longPendingAfter time.Duration
	trackTimeout     time.Duration
	staleAfter       time.Duration
	now              func() time.Time

	mu          sync.Mutex
	seq         uint64
	open        bool
	session     string
	ctx         context.Context
	cancel      context.CancelFunc
	token       TokenSummary
	req         TransferRequest
	call        *PreparedCall
	txChain     ChainID
	state       State
	prepCancel  context.CancelFunc
	trackCancel context.CancelFunc
	subs        map[int]chan State
	nextSub     int

	wg sync.WaitGroup
}

func New(wallet Wallet, sim Simulator, explorers ExplorerResolver, opts ...Option) *Controller {
	c := &Controller{
		wallet:           wallet,
		preparer:         NewPreparer(sim),
		explorers:        explorers,
		logger:           log.New(io.Discard),
		confirmations:    DefaultConfirmations,
		longPendingAfter: DefaultLongPendingAfter,
		staleAfter:       DefaultStaleAfter,
		now:              time.Now,
		subs:             make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenDialog starts a new session for token. Any previous session is closed first.
func (c *Controller) OpenDialog(token TokenSummary, initial TransferRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		c.closeLocked()
	}

	if initial.TokenAddress == "" {
		initial.TokenAddress = token.Address
	}
	if initial.Recipient == "" {
		initial.Recipient = UnsetRecipient
	}
	if initial.Amount == nil {
		initial.Amount = new(big.Int)
	}

	c.open = true
	c.session = uuid.NewString()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.token = token
	c.req = initial.clone()

	c.logger.Info("dialog opened", "dialog", c.session, "token", token.Symbol, "address", initial.TokenAddress)
	c.startPreparationLocked()
}

// CloseDialog ends the session. Preparation, signature requests and
// confirmation tracking stop; a broadcast transaction is left as is.
func (c *Controller) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	if !c.open {
		return
	}
	c.logger.Info("dialog closed", "dialog", c.session, "phase", c.state.Phase)

	c.cancel()
	c.open = false
	c.session = ""
	c.req = TransferRequest{}
	c.call = nil
	c.prepCancel = nil
	c.trackCancel = nil
	c.setStateLocked(State{Phase: Idle})
}

func (c *Controller) SetRecipient(recipient string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if recipient == "" {
		recipient = UnsetRecipient
	}
	if recipient == c.req.Recipient {
		return nil
	}

	c.req.Recipient = recipient
	c.startPreparationLocked()
	return nil
}

func (c *Controller) SetAmount(amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if c.req.Amount != nil && c.req.Amount.Cmp(amount) == 0 {
		return nil
	}

	c.req.Amount = new(big.Int).Set(amount)
	c.startPreparationLocked()
	return nil
}

// ChainChanged tells the controller the wallet switched networks. Input is
// prepared again for the new chain; a transfer already signed or pending is
// left alone.
func (c *Controller) ChainChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editableLocked() != nil {
		return
	}
	c.logger.Info("chain changed, preparing again", "dialog", c.session)
	c.prepareForNewChainLocked()
}

func (c *Controller) prepareForNewChainLocked() {
	c.startPreparationLocked()
	next := c.state
	next.Notice = &Notice{Kind: NoticeChainChanged, Message: "The wallet switched networks. Review the transfer again."}
	c.setStateLocked(next)
}

func (c *Controller) editableLocked() error {
	if !c.open {
		return ErrDialogClosed
	}
	if c.state.Phase != Idle && c.state.Phase != Ready {
		return ErrTransferLocked
	}
	return nil
}

// ConfirmSend submits the prepared call. It is only accepted in Ready.
func (c *Controller) ConfirmSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrDialogClosed
	}
	if c.state.Phase != Ready || c.call == nil || c.call.seq != c.seq {
		return ErrNotReady
	}
	if c.staleAfter > 0 && c.now().Sub(c.call.PreparedAt) > c.staleAfter {
		c.logger.Debug("prepared call is stale", "dialog", c.session, "age", c.now().Sub(c.call.PreparedAt))
		c.startPreparationLocked()
		return ErrStaleCall
	}

	call := c.call
	c.setStateLocked(State{Phase: AwaitingSignature})

	c.wg.Add(1)
	go c.submit(c.ctx, c.session, call)
	return nil
}

// Reset leaves a terminal state and prepares the request again. After a
// confirmed transfer the recipient and amount are cleared.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrDialogClosed
	}
	switch c.state.Phase {
	case AwaitingSignature, Pending:
		return ErrTransferLocked
	case Confirmed:
		c.req = NewTransferRequest(c.req.TokenAddress)
	}

	if c.trackCancel != nil {
		c.trackCancel()
		c.trackCancel = nil
	}
	c.startPreparationLocked()
	return nil
}

func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Notice == nil {
		return
	}
	next := c.state
	next.Notice = nil
	c.setStateLocked(next)
}

func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.copy()
}

// ExplorerLink returns the explorer URL of the submitted transaction, if any.
func (c *Controller) ExplorerLink() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.TxHash == "" {
		return "", false
	}
	return ExplorerLink(c.explorers, c.txChain, c.state.TxHash)
}

func (c *Controller) Token() TokenSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Controller) Request() TransferRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req.clone()
}

// Subscribe returns a channel receiving every state change, starting with the
// current state. A slow subscriber loses older states, never the latest one.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, subscriberBuffer)
	c.subs[id] = ch
	ch <- c.state.copy()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Wait blocks until background work of closed sessions has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) startPreparationLocked() {
	c.seq++
	seq := c.seq
	if c.prepCancel != nil {
		c.prepCancel()
		c.prepCancel = nil
	}
	c.call = nil

	req := c.req.clone()
	if err := req.Validate(); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) && vErr.Code == CodeRecipientUnset {
			err = nil
		}
		c.setStateLocked(State{Phase: Idle, Hint: err})
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.prepCancel = cancel
	c.setStateLocked(State{Phase: Idle, Preparing: true})

	c.wg.Add(1)
	go c.prepare(ctx, cancel, seq, req)
}

func (c *Controller) prepare(ctx context.Context, cancel context.CancelFunc, seq uint64, req TransferRequest) {
	defer c.wg.Done()
	defer cancel()

	var prep Preparation
	conn, err := c.wallet.ConnectedChain(ctx)
	if err != nil {
		prep = Preparation{Hint: &SimulationError{Reason: "wallet is not connected", Cause: err}}
	} else {
		prep = c.preparer.Prepare(ctx, conn, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq || ctx.Err() != nil {
		c.logger.Debug("discarding superseded preparation", "seq", seq)
		return
	}
	c.prepCancel = nil

	notice := c.state.Notice
	if !prep.Ready() {
		c.logger.Debug("transfer not ready", "dialog", c.session, "hint", prep.Hint)
		c.setStateLocked(State{Phase: Idle, Hint: prep.Hint, Notice: notice})
		return
	}

	prep.Call.seq = seq
	c.call = prep.Call
	c.setStateLocked(State{Phase: Ready, Notice: notice})
}

func (c *Controller) submit(ctx context.Context, session string, call *PreparedCall) {
	defer c.wg.Done()

	txHash, err := c.wallet.RequestSignatureAndBroadcast(ctx, call)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != session {
		c.logger.Debug("ignoring submission result for closed dialog", "tx", txHash, "err", err)
		return
	}

	if err != nil {
		if errors.Is(err, ErrChainChanged) {
			c.logger.Info("wallet switched networks before signing", "dialog", session, "err", err)
			c.prepareForNewChainLocked()
			return
		}
		reason := Classify(err)
		if reason == ReasonUserRejected {
			c.logger.Info("signature rejected", "dialog", session)
			c.setStateLocked(State{
				Phase:  Ready,
				Notice: &Notice{Kind: NoticeRejected, Message: reason.Message()},
			})
			return
		}
		c.logger.Warn("submission failed", "dialog", session, "reason", reason, "err", err)
		c.setStateLocked(State{Phase: Failed, Reason: reason, Detail: err.Error()})
		return
	}
	if txHash == "" {
		c.setStateLocked(State{Phase: Failed, Reason: ReasonUnknown, Detail: "wallet returned no transaction hash"})
		return
	}

	c.logger.Info("transaction broadcast", "dialog", session, "tx", txHash, "chain", call.Chain)
	c.call = nil
	c.txChain = call.Chain
	c.setStateLocked(State{Phase: Pending, TxHash: txHash})
	c.startTrackingLocked(txHash)
}

func (c *Controller) startTrackingLocked(txHash string) {
	if c.trackCancel != nil {
		c.trackCancel()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.trackTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.trackTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	c.trackCancel = cancel

	session := c.session
	var timer *time.Timer
	if c.longPendingAfter > 0 {
		timer = time.AfterFunc(c.longPendingAfter, func() {
			c.markLongPending(session, txHash)
		})
	}

	c.wg.Add(1)
	go c.track(ctx, cancel, timer, session, txHash)
}

func (c *Controller) track(ctx context.Context, cancel context.CancelFunc, timer *time.Timer, session, txHash string) {
	defer c.wg.Done()
	defer cancel()
	if timer != nil {
		defer timer.Stop()
	}

	receipt, err := c.wallet.WaitForReceipt(ctx, txHash, c.confirmations)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != session || c.state.Phase != Pending || c.state.TxHash != txHash {
		return
	}
	c.trackCancel = nil

	failed := State{Phase: Failed, TxHash: txHash}
	switch {
	case err == nil && receipt == nil:
		failed.Reason, failed.Detail = ReasonUnknown, "wallet returned no receipt"
	case err == nil && receipt.Reverted:
		failed.Reason, failed.Detail = ReasonReverted, ReasonReverted.Message()
	case err == nil:
		c.logger.Info("transaction confirmed", "dialog", session, "tx", txHash, "block", receipt.BlockNumber)
		c.setStateLocked(State{
			Phase:  Confirmed,
			TxHash: txHash,
			Notice: &Notice{Kind: NoticeSuccess, Message: "Successfully sent"},
		})
		return
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		failed.Reason, failed.Detail = ReasonTimeout, err.Error()
	case errors.Is(err, context.Canceled):
		return
	default:
		failed.Reason, failed.Detail = Classify(err), err.Error()
	}

	c.logger.Warn("transaction failed", "dialog", session, "tx", txHash, "reason", failed.Reason)
	c.setStateLocked(failed)
}

func (c *Controller) markLongPending(session, txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != session || c.state.Phase != Pending || c.state.TxHash != txHash || c.state.LongPending {
		return
	}
	c.logger.Warn("transaction pending for a long time", "dialog", session, "tx", txHash)
	next := c.state
	next.LongPending = true
	c.setStateLocked(next)
}

func (c *Controller) setStateLocked(next State) {
	if next.Phase != c.state.Phase {
		c.logger.Debug("transition", "dialog", c.session, "from", c.state.Phase, "to", next.Phase)
	}
	c.state = next

	snapshot := next.copy()
	for _, ch := range c.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (s State) copy() State {
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	return s
}
