package views

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rhystmorgan/tokenSend/internal/transfer"
	"rhystmorgan/tokenSend/internal/utils"
)

type ErrorMsg struct {
	Err error
}

// AppModel is the root model. It owns the window and the token dialog.
type AppModel struct {
	dialog *TokenDialogModel
	width  int
	height int
	err    error
}

func NewAppModel(dialog *TokenDialogModel) *AppModel {
	return &AppModel{dialog: dialog}
}

// FinalState is the dialog state when the program exited.
func (m *AppModel) FinalState() transfer.State {
	return m.dialog.State()
}

func (m *AppModel) Init() tea.Cmd {
	return m.dialog.Init()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.dialog.Close()
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.dialog, cmd = m.dialog.Update(msg)
	return m, cmd
}

func (m *AppModel) View() string {
	content := m.dialog.View()

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Palette.Error)).
			Bold(true).
			Padding(1)
		content += "\n" + errorStyle.Render(fmt.Sprintf("Error: %s", m.err.Error()))
	}

	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// FinalLink is the explorer link shown when the program exited, if any.
func (m *AppModel) FinalLink() string {
	return m.dialog.link
}
