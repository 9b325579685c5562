package views

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/tokenSend/internal/blockchain"
	"rhystmorgan/tokenSend/internal/transfer"
	"rhystmorgan/tokenSend/internal/utils"
)

// TransferController is the part of transfer.Controller the dialog drives.
type TransferController interface {
	CurrentState() transfer.State
	Subscribe() (<-chan transfer.State, func())
	Token() transfer.TokenSummary
	Request() transfer.TransferRequest
	SetRecipient(recipient string) error
	SetAmount(amount *big.Int) error
	ConfirmSend() error
	Reset() error
	DismissNotice()
	CloseDialog()
	ExplorerLink() (string, bool)
}

// StatusSource reports the node connection shown in the dialog header.
type StatusSource interface {
	GetStatus() blockchain.NetworkStatus
}

type dialogField int

const (
	fieldRecipient dialogField = iota
	fieldAmount
)

type StateChangedMsg struct {
	State transfer.State
}

type stateStreamClosedMsg struct{}

type linkCopiedMsg struct {
	Err error
}

func waitForState(states <-chan transfer.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return stateStreamClosedMsg{}
		}
		return StateChangedMsg{State: state}
	}
}

type TokenDialogModel struct {
	controller  TransferController
	states      <-chan transfer.State
	unsubscribe func()
	requests    <-chan *SignatureRequest

	token transfer.TokenSummary
	state transfer.State
	link  string

	recipient textinput.Model
	amount    textinput.Model
	focus     dialogField
	amountErr string

	spinner  spinner.Model
	keys     dialogKeyMap
	help     help.Model
	prompt   *SignaturePromptModel
	feedback *FeedbackMessage

	status       StatusSource
	pendingSince time.Time
	now          func() time.Time

	copyLink func(string) error
	closed   bool
	width    int
}

// NewTokenDialogModel subscribes to the controller of an open dialog.
// approver may be nil when signing does not go through the dialog.
func NewTokenDialogModel(controller TransferController, approver *PromptApprover, unlocker Unlocker) *TokenDialogModel {
	token := controller.Token()
	req := controller.Request()

	recipient := textinput.New()
	recipient.Prompt = "Recipient  "
	recipient.Placeholder = "0x..."
	recipient.CharLimit = 42
	recipient.Width = 44
	if req.RecipientSet() {
		recipient.SetValue(req.Recipient)
	}

	amount := textinput.New()
	amount.Prompt = "Amount     "
	amount.Placeholder = "0.0 " + token.Symbol
	amount.CharLimit = 80
	amount.Width = 44
	if req.Amount != nil && req.Amount.Sign() > 0 {
		amount.SetValue(utils.FormatTokenAmount(req.Amount, token.Decimals, ""))
	}

	states, unsubscribe := controller.Subscribe()

	m := &TokenDialogModel{
		controller:  controller,
		states:      states,
		unsubscribe: unsubscribe,
		token:       token,
		state:       controller.CurrentState(),
		recipient:   recipient,
		amount:      amount,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Accent))),
		),
		keys:     newDialogKeyMap(),
		help:     help.New(),
		prompt:   NewSignaturePromptModel(unlocker),
		now:      time.Now,
		copyLink: clipboard.WriteAll,
	}
	if approver != nil {
		m.requests = approver.Requests()
	}
	m.recipient.Focus()
	m.syncControls()
	return m
}

// SetStatusSource shows the connection state of source in the header.
func (m *TokenDialogModel) SetStatusSource(source StatusSource) {
	m.status = source
}

func (m *TokenDialogModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.states),
		waitForSignatureRequest(m.requests),
		textinput.Blink,
		m.spinner.Tick,
	)
}

// Close tears the dialog down, cancelling any work in flight.
func (m *TokenDialogModel) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.prompt.Hide()
	m.unsubscribe()
	m.controller.CloseDialog()
}

func (m *TokenDialogModel) State() transfer.State {
	return m.state
}

func (m *TokenDialogModel) Update(msg tea.Msg) (*TokenDialogModel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateChangedMsg:
		m.applyState(msg.State)
		return m, waitForState(m.states)

	case stateStreamClosedMsg:
		return m, nil

	case SignatureRequestedMsg:
		cmd := m.prompt.Show(msg.Request, m.token)
		return m, tea.Batch(cmd, waitForSignatureRequest(m.requests))

	case SignatureVerifiedMsg:
		return m, m.prompt.Update(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FeedbackTimeoutMsg:
		if m.feedback != nil && m.feedback.ShowTime.Equal(msg.ShowTime) {
			m.feedback = nil
		}
		return m, nil

	case linkCopiedMsg:
		if msg.Err != nil {
			return m, m.showFeedback(FeedbackError, "Could not copy link: "+msg.Err.Error())
		}
		return m, m.showFeedback(FeedbackSuccess, "Link copied to clipboard")

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.prompt.IsVisible() {
			return m, m.prompt.Update(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *TokenDialogModel) handleKey(msg tea.KeyMsg) (*TokenDialogModel, tea.Cmd) {
	editable := m.editable()

	// Letters belong to the inputs while they accept edits.
	if editable && msg.Type == tea.KeyRunes {
		return m, m.updateInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		if m.state.Phase != transfer.Ready {
			return m, nil
		}
		return m, m.confirmSend()

	case key.Matches(msg, m.keys.Next):
		if editable {
			m.toggleFocus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		m.controller.DismissNotice()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		return m, m.reset()

	case key.Matches(msg, m.keys.Copy):
		if m.link == "" {
			return m, nil
		}
		link, copyLink := m.link, m.copyLink
		return m, func() tea.Msg { return linkCopiedMsg{Err: copyLink(link)} }
	}

	if editable {
		return m, m.updateInput(msg)
	}
	return m, nil
}

func (m *TokenDialogModel) confirmSend() tea.Cmd {
	err := m.controller.ConfirmSend()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transfer.ErrStaleCall):
		return m.showFeedback(FeedbackInfo, "Transfer details refreshed, press Enter again")
	default:
		return m.showFeedback(FeedbackError, err.Error())
	}
}

func (m *TokenDialogModel) reset() tea.Cmd {
	confirmed := m.state.Phase == transfer.Confirmed
	if err := m.controller.Reset(); err != nil {
		if errors.Is(err, transfer.ErrTransferLocked) {
			return nil
		}
		return m.showFeedback(FeedbackError, err.Error())
	}
	if confirmed {
		m.recipient.Reset()
		m.amount.Reset()
		m.amountErr = ""
		m.focus = fieldRecipient
	}
	return nil
}

func (m *TokenDialogModel) updateInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case fieldRecipient:
		before := m.recipient.Value()
		m.recipient, cmd = m.recipient.Update(msg)
		if value := m.recipient.Value(); value != before {
			return tea.Batch(cmd, m.pushRecipient(value))
		}
	case fieldAmount:
		before := m.amount.Value()
		m.amount, cmd = m.amount.Update(msg)
		if value := m.amount.Value(); value != before {
			return tea.Batch(cmd, m.pushAmount(value))
		}
	}
	return cmd
}

func (m *TokenDialogModel) pushRecipient(value string) tea.Cmd {
	value = strings.TrimSpace(value)
	if value == "" {
		value = transfer.UnsetRecipient
	}
	return m.setterFeedback(m.controller.SetRecipient(value))
}

// pushAmount forwards the parsed amount. Input that does not parse is sent
// as zero so the transfer cannot be confirmed while the field is invalid.
func (m *TokenDialogModel) pushAmount(value string) tea.Cmd {
	m.amountErr = ""
	amount := new(big.Int)
	if strings.TrimSpace(value) != "" {
		parsed, err := utils.ParseAmount(value, m.token.Decimals)
		if err != nil {
			m.amountErr = err.Error()
		} else {
			amount = parsed
		}
	}
	return m.setterFeedback(m.controller.SetAmount(amount))
}

func (m *TokenDialogModel) setterFeedback(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	return m.showFeedback(FeedbackWarning, err.Error())
}

func (m *TokenDialogModel) toggleFocus() {
	if m.focus == fieldRecipient {
		m.focus = fieldAmount
	} else {
		m.focus = fieldRecipient
	}
	m.syncControls()
}

func (m *TokenDialogModel) applyState(state transfer.State) {
	if state.Phase == transfer.Pending && (m.state.Phase != transfer.Pending || m.state.TxHash != state.TxHash) {
		m.pendingSince = m.now()
	}
	m.state = state
	m.link = ""
	if link, ok := m.controller.ExplorerLink(); ok {
		m.link = link
	}
	if state.Phase != transfer.AwaitingSignature && m.prompt.IsVisible() {
		m.prompt.Hide()
	}
	m.syncControls()
}

func (m *TokenDialogModel) editable() bool {
	return m.state.Phase == transfer.Idle || m.state.Phase == transfer.Ready
}

func (m *TokenDialogModel) syncControls() {
	editable := m.editable()
	m.recipient.Blur()
	m.amount.Blur()
	if editable {
		if m.focus == fieldRecipient {
			m.recipient.Focus()
		} else {
			m.amount.Focus()
		}
	}

	m.keys.Send.SetEnabled(m.state.Phase == transfer.Ready)
	m.keys.Next.SetEnabled(editable)
	m.keys.Dismiss.SetEnabled(m.state.Notice != nil)
	m.keys.Reset.SetEnabled(m.state.Phase.Terminal())
	m.keys.Copy.SetEnabled(m.link != "")
}

func (m *TokenDialogModel) showFeedback(feedbackType FeedbackType, message string) tea.Cmd {
	var cmd tea.Cmd
	m.feedback, cmd = newFeedback(feedbackType, message, 4*time.Second)
	return cmd
}

func (m *TokenDialogModel) View() string {
	containerStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(utils.Palette.Border))

	var content strings.Builder
	content.WriteString(m.renderHeader())
	content.WriteString("\n\n")
	content.WriteString(m.recipient.View())
	content.WriteString("\n")
	content.WriteString(m.amount.View())
	content.WriteString("\n")

	if hint := m.hintText(); hint != "" {
		content.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Error)).Render(hint))
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(m.renderStatus())

	if m.feedback != nil {
		content.WriteString("\n\n")
		content.WriteString(m.feedback.render())
	}

	content.WriteString("\n\n")
	content.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))

	result := containerStyle.Render(content.String())
	if m.prompt.IsVisible() {
		return lipgloss.JoinVertical(lipgloss.Center, result, m.prompt.View())
	}
	return result
}

func (m *TokenDialogModel) renderHeader() string {
	iconStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Colours.Base)).
		Background(lipgloss.Color(utils.Palette.Title)).
		Bold(true).
		Padding(0, 1)

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Title)).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Muted))

	title := lipgloss.JoinHorizontal(lipgloss.Center,
		iconStyle.Render(m.token.Initials()), " ", titleStyle.Render(m.token.Title()))
	header := title + "\n" + subtitleStyle.Render(m.token.Holdings())
	if line := m.connectionLine(); line != "" {
		header += "\n" + line
	}
	return header
}

func (m *TokenDialogModel) connectionLine() string {
	if m.status == nil {
		return ""
	}
	status := m.status.GetStatus()
	if !status.Connected {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Error)).Render("● Disconnected")
	}
	line := "● Connected"
	if status.BlockHeight > 0 {
		line += fmt.Sprintf(" · block %d", status.BlockHeight)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Success)).Render(line)
}

func (m *TokenDialogModel) hintText() string {
	if m.amountErr != "" {
		return m.amountErr
	}
	if m.state.Phase == transfer.Idle && m.state.Hint != nil {
		return hintMessage(m.state.Hint)
	}
	return ""
}

func hintMessage(err error) string {
	var validationErr *transfer.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	var simErr *transfer.SimulationError
	if errors.As(err, &simErr) {
		return utils.TruncateString("Transfer would fail: "+simErr.Error(), 96)
	}
	return utils.TruncateString(err.Error(), 96)
}

func (m *TokenDialogModel) renderStatus() string {
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Muted))
	success := lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Success)).Bold(true)
	warning := lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Warning))
	failure := lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Error)).Bold(true)

	var lines []string
	switch m.state.Phase {
	case transfer.Idle:
		if m.state.Preparing {
			lines = append(lines, m.spinner.View()+" Checking transfer...")
		} else {
			lines = append(lines, muted.Render("Enter a recipient and an amount"))
		}

	case transfer.Ready:
		lines = append(lines, success.Render("Ready to send"))

	case transfer.AwaitingSignature:
		lines = append(lines, m.spinner.View()+" Waiting for signature...")

	case transfer.Pending:
		lines = append(lines, m.spinner.View()+" Is loading...")
		lines = append(lines, m.transactionLine())
		if m.state.LongPending {
			waited := utils.FormatDuration(m.now().Sub(m.pendingSince))
			lines = append(lines, warning.Render("Still pending after "+waited+". The transfer is still being tracked."))
		}

	case transfer.Confirmed:
		if m.state.Notice == nil {
			lines = append(lines, success.Render("Confirmed"))
		}
		lines = append(lines, m.transactionLine())

	case transfer.Failed:
		lines = append(lines, failure.Render(m.state.Reason.Message()))
		if m.state.Detail != "" {
			lines = append(lines, muted.Render(utils.TruncateString(m.state.Detail, 96)))
		}
		if m.state.TxHash != "" {
			lines = append(lines, m.transactionLine())
		}
	}

	if notice := m.state.Notice; notice != nil {
		style := warning
		prefix := ""
		if notice.Kind == transfer.NoticeSuccess {
			style = success
			prefix = "✓ "
		}
		lines = append(lines, style.Render(prefix+notice.Message))
	}

	return strings.Join(lines, "\n")
}

func (m *TokenDialogModel) transactionLine() string {
	linkStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Palette.Accent)).Underline(true)
	if m.link != "" {
		return linkStyle.Render(m.link)
	}
	return fmt.Sprintf("Transaction %s", utils.FormatTransactionID(m.state.TxHash))
}
