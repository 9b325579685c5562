package views

import "github.com/charmbracelet/bubbles/key"

type dialogKeyMap struct {
	Send    key.Binding
	Next    key.Binding
	Cancel  key.Binding
	Dismiss key.Binding
	Reset   key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

func newDialogKeyMap() dialogKeyMap {
	return dialogKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab", "shift+tab", "up", "down"),
			key.WithHelp("tab", "next field"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x", "ctrl+x"),
			key.WithHelp("x", "dismiss"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "try again"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c", "ctrl+y"),
			key.WithHelp("c", "copy link"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k dialogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Next, k.Dismiss, k.Reset, k.Copy, k.Cancel}
}

func (k dialogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Quit}}
}
