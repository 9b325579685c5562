package views

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/tokenSend/internal/storage"
	"rhystmorgan/tokenSend/internal/transfer"
	"rhystmorgan/tokenSend/internal/utils"
)

// Unlocker turns the keystore password into the signing key.
type Unlocker interface {
	Unlock(password string) (*ecdsa.PrivateKey, error)
}

type signatureReply struct {
	key *ecdsa.PrivateKey
	err error
}

// SignatureRequest is one pending approval. It is answered exactly once.
type SignatureRequest struct {
	Call *transfer.PreparedCall

	once  sync.Once
	reply chan signatureReply
}

func (r *SignatureRequest) Approve(key *ecdsa.PrivateKey) {
	r.once.Do(func() { r.reply <- signatureReply{key: key} })
}

func (r *SignatureRequest) Reject(err error) {
	if err == nil {
		err = transfer.ErrUserRejected
	}
	r.once.Do(func() { r.reply <- signatureReply{err: err} })
}

// PromptApprover hands signature requests from the wallet adapter to the
// dialog, which asks the user for the keystore password.
type PromptApprover struct {
	requests chan *SignatureRequest
}

func NewPromptApprover() *PromptApprover {
	return &PromptApprover{requests: make(chan *SignatureRequest)}
}

func (a *PromptApprover) Requests() <-chan *SignatureRequest {
	return a.requests
}

func (a *PromptApprover) Approve(ctx context.Context, call *transfer.PreparedCall) (*ecdsa.PrivateKey, error) {
	req := &SignatureRequest{Call: call, reply: make(chan signatureReply, 1)}

	select {
	case a.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply.key, reply.err
	case <-ctx.Done():
		req.Reject(ctx.Err())
		return nil, ctx.Err()
	}
}

type SignatureRequestedMsg struct {
	Request *SignatureRequest
}

type SignatureVerifiedMsg struct {
	Key *ecdsa.PrivateKey
	Err error
}

func waitForSignatureRequest(requests <-chan *SignatureRequest) tea.Cmd {
	if requests == nil {
		return nil
	}
	return func() tea.Msg {
		req, ok := <-requests
		if !ok {
			return nil
		}
		return SignatureRequestedMsg{Request: req}
	}
}

type SignaturePromptModel struct {
	unlocker Unlocker
	request  *SignatureRequest
	token    transfer.TokenSummary

	password    textinput.Model
	attempts    int
	maxAttempts int

	visible bool
	loading bool
	error   string
}

func NewSignaturePromptModel(unlocker Unlocker) *SignaturePromptModel {
	password := textinput.New()
	password.Placeholder = "keystore password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.Prompt = "Password: "
	password.Width = 36

	return &SignaturePromptModel{
		unlocker:    unlocker,
		password:    password,
		maxAttempts: 3,
	}
}

func (m *SignaturePromptModel) Show(req *SignatureRequest, token transfer.TokenSummary) tea.Cmd {
	m.request = req
	m.token = token
	m.visible = true
	m.loading = false
	m.error = ""
	m.attempts = 0
	m.password.Reset()
	return m.password.Focus()
}

// Hide closes the overlay, rejecting the request if it is still open.
func (m *SignaturePromptModel) Hide() {
	if m.request != nil {
		m.request.Reject(transfer.ErrUserRejected)
	}
	m.request = nil
	m.visible = false
	m.loading = false
	m.error = ""
	m.password.Reset()
	m.password.Blur()
}

func (m *SignaturePromptModel) IsVisible() bool {
	return m.visible
}

func (m *SignaturePromptModel) Update(msg tea.Msg) tea.Cmd {
	if !m.visible {
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.loading {
			return nil
		}

		switch msg.String() {
		case "esc":
			m.Hide()
			return nil

		case "enter":
			if m.password.Value() == "" {
				m.error = "Password cannot be empty"
				return nil
			}
			m.loading = true
			m.error = ""
			return m.verifyPassword(m.password.Value())

		case "ctrl+u":
			m.password.Reset()
			return nil
		}

		var cmd tea.Cmd
		m.password, cmd = m.password.Update(msg)
		return cmd

	case SignatureVerifiedMsg:
		m.loading = false
		if msg.Err == nil {
			m.request.Approve(msg.Key)
			m.request = nil
			m.Hide()
			return nil
		}

		m.password.Reset()
		if !errors.Is(msg.Err, storage.ErrWrongPassword) {
			m.error = msg.Err.Error()
			return nil
		}
		m.attempts++
		if m.attempts >= m.maxAttempts {
			m.Hide()
			return nil
		}
		m.error = fmt.Sprintf("Incorrect password (%d/%d attempts)", m.attempts, m.maxAttempts)
	}

	return nil
}

func (m *SignaturePromptModel) View() string {
	if !m.visible {
		return ""
	}

	overlayStyle := lipgloss.NewStyle().
		Width(60).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(utils.Palette.Accent)).
		Padding(1)

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Accent)).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Text)).
		Margin(1, 0)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Error)).
		Bold(true)

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Palette.Muted)).
		Italic(true)

	var content strings.Builder
	content.WriteString(titleStyle.Render("Signature request"))
	content.WriteString("\n")

	if call := m.request; call != nil && call.Call != nil {
		desc := fmt.Sprintf("Send %s to %s on chain %s",
			utils.FormatTokenAmount(call.Call.Amount, m.token.Decimals, m.token.Symbol),
			utils.FormatAddress(call.Call.Recipient.Hex(), 8, 6),
			call.Call.Chain)
		content.WriteString(descStyle.Render(desc))
		content.WriteString("\n")
	}

	if m.loading {
		content.WriteString("Unlocking keystore...")
	} else {
		content.WriteString(m.password.View())
	}
	content.WriteString("\n\n")

	if m.error != "" {
		content.WriteString(errorStyle.Render(m.error))
		content.WriteString("\n\n")
	}

	if !m.loading {
		content.WriteString(helpStyle.Render("Enter: sign • Esc: reject • Ctrl+U: clear"))
	}

	return overlayStyle.Render(content.String())
}

func (m *SignaturePromptModel) verifyPassword(password string) tea.Cmd {
	unlocker := m.unlocker
	return func() tea.Msg {
		if unlocker == nil {
			return SignatureVerifiedMsg{Err: errors.New("no keystore available")}
		}
		key, err := unlocker.Unlock(password)
		return SignatureVerifiedMsg{Key: key, Err: err}
	}
}
