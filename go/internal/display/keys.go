package display

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/splitsync/go/internal/command"
)

// KeyMap defines the key bindings of the timer screen.
type KeyMap struct {
	Start         key.Binding
	Split         key.Binding
	Unsplit       key.Binding
	Resume        key.Binding
	Pause         key.Binding
	UndoAllPauses key.Binding
	Reset         key.Binding
	Offset        key.Binding

	ToggleControls key.Binding
	Quit           key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Split: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "split"),
	),
	Unsplit: key.NewBinding(
		key.WithKeys("u", "backspace"),
		key.WithHelp("u", "unsplit"),
	),
	Resume: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "resume"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	UndoAllPauses: key.NewBinding(
		key.WithKeys("U"),
		key.WithHelp("U", "undo pauses"),
	),
	Reset: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "reset"),
	),
	Offset: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "set offset"),
	),
	ToggleControls: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "controls"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// intent maps a pressed key to the timer command it submits.
func (k KeyMap) intent(msg tea.KeyMsg) (command.Command, bool) {
	switch {
	case key.Matches(msg, k.Start):
		return command.StartTimer, true
	case key.Matches(msg, k.Split):
		return command.Split, true
	case key.Matches(msg, k.Unsplit):
		return command.UndoSplit, true
	case key.Matches(msg, k.Resume):
		return command.Resume, true
	case key.Matches(msg, k.Pause):
		return command.Pause, true
	case key.Matches(msg, k.UndoAllPauses):
		return command.UndoAllPauses, true
	case key.Matches(msg, k.Reset):
		return command.Reset, true
	case key.Matches(msg, k.Offset):
		return command.SetOffset, true
	}
	return command.None, false
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleControls, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Split, k.Unsplit, k.Reset},
		{k.Pause, k.Resume, k.UndoAllPauses, k.Offset},
		{k.ToggleControls, k.Quit},
	}
}
