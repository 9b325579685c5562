package views

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/tokenSend/internal/utils"
)

type FeedbackMessage struct {
	Type     FeedbackType
	Message  string
	Duration time.Duration
	ShowTime time.Time
}

type FeedbackType string

const (
	FeedbackSuccess FeedbackType = "success"
	FeedbackError   FeedbackType = "error"
	FeedbackWarning FeedbackType = "warning"
	FeedbackInfo    FeedbackType = "info"
)

// FeedbackTimeoutMsg clears a feedback message once its duration has passed.
// ShowTime identifies the message so a newer one is not cleared early.
type FeedbackTimeoutMsg struct {
	ShowTime time.Time
}

func newFeedback(feedbackType FeedbackType, message string, duration time.Duration) (*FeedbackMessage, tea.Cmd) {
	feedback := &FeedbackMessage{
		Type:     feedbackType,
		Message:  message,
		Duration: duration,
		ShowTime: time.Now(),
	}
	shown := feedback.ShowTime
	return feedback, tea.Tick(duration, func(time.Time) tea.Msg {
		return FeedbackTimeoutMsg{ShowTime: shown}
	})
}

func (f *FeedbackMessage) render() string {
	if f == nil {
		return ""
	}

	var color string
	switch f.Type {
	case FeedbackSuccess:
		color = utils.Palette.Success
	case FeedbackError:
		color = utils.Palette.Error
	case FeedbackWarning:
		color = utils.Palette.Warning
	case FeedbackInfo:
		color = utils.Palette.Accent
	default:
		color = utils.Palette.Text
	}

	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Background(lipgloss.Color(utils.Colours.Surface0)).
		Padding(0, 1).
		Bold(true).
		Render(f.Message)
}
