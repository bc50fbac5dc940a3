// Package display is the terminal front end: a login screen, the timer face
// and a controls pane showing connection and queue state.
package display

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/mcdev12/splitsync/go/internal/config"
	"github.com/mcdev12/splitsync/go/internal/connection"
	"github.com/mcdev12/splitsync/go/internal/stopwatch"
	"github.com/mcdev12/splitsync/go/internal/syncctl"
)

const (
	frameInterval = 50 * time.Millisecond
	queueInterval = 500 * time.Millisecond

	// diagnosticWindow is how long the placeholder time is shown after the
	// timer screen first appears.
	diagnosticWindow = 1500 * time.Millisecond

	baseFaceWidth = 16
)

var (
	mutedColor = lipgloss.Color("#6B7280")
	errorColor = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(22)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

// Controller is the part of syncctl.Controller the display drives.
type Controller interface {
	Login(url, password string)
	Submit(cmd command.Command)
	Status() syncctl.Status
	Updates() <-chan struct{}
}

// Face supplies what the timer face renders.
type Face interface {
	Snapshot() stopwatch.Snapshot
}

type frameMsg time.Time

type queueMsg time.Time

type statusMsg struct{}

// Model is the bubbletea model of the viewer.
type Model struct {
	ctrl  Controller
	face  Face
	clock clockwork.Clock

	keys KeyMap
	help help.Model

	url       textinput.Model
	password  textinput.Model
	autoLogin bool

	faceStyle     lipgloss.Style
	fractionStyle lipgloss.Style

	status       syncctl.Status
	queueText    string
	showControls bool
	now          time.Time
	width        int
}

// New builds the viewer model. A non-empty client password logs in as soon
// as the program starts.
func New(ctrl Controller, face Face, clock clockwork.Clock, client config.ClientConfig, display config.DisplayConfig) Model {
	url := textinput.New()
	url.Prompt = "Server URL: "
	url.Placeholder = config.DefaultURL
	url.CharLimit = 256
	url.SetValue(client.URL)

	password := textinput.New()
	password.Prompt = "Password:   "
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 128
	password.SetValue(client.Password)
	password.Focus()

	color := lipgloss.Color("#" + display.FontColor)
	width := int(float64(baseFaceWidth) * display.FontScale)
	padding := int(display.FontScale) - 1
	if padding < 0 {
		padding = 0
	}

	return Model{
		ctrl:      ctrl,
		face:      face,
		clock:     clock,
		keys:      DefaultKeyMap,
		help:      help.New(),
		url:       url,
		password:  password,
		autoLogin: client.Password != "",
		faceStyle: lipgloss.NewStyle().
			Foreground(color).
			Bold(true).
			Width(width).
			Padding(padding, 0).
			Align(alignment(display.TextAlign)),
		fractionStyle: lipgloss.NewStyle().Foreground(color),
		status:        ctrl.Status(),
		queueText:     none,
		now:           clock.Now(),
	}
}

func alignment(align string) lipgloss.Position {
	switch align {
	case "left":
		return lipgloss.Left
	case "right":
		return lipgloss.Right
	default:
		return lipgloss.Center
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.frameTick(),
		m.queueTick(),
		m.waitForStatus(),
	}
	if m.autoLogin {
		cmds = append(cmds, m.login())
	}
	return tea.Batch(cmds...)
}

func (m Model) frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) queueTick() tea.Cmd {
	return tea.Tick(queueInterval, func(t time.Time) tea.Msg { return queueMsg(t) })
}

func (m Model) waitForStatus() tea.Cmd {
	updates := m.ctrl.Updates()
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return statusMsg{}
	}
}

func (m Model) login() tea.Cmd {
	url := strings.TrimSpace(m.url.Value())
	if url == "" {
		url = config.DefaultURL
	}
	password := m.password.Value()
	return func() tea.Msg {
		m.ctrl.Login(url, password)
		return nil
	}
}

// inputsEnabled reports whether the login fields accept edits.
func (m Model) inputsEnabled() bool {
	switch m.status.Connection {
	case connection.StatePendingInput, connection.StateWrongPassword:
		return true
	}
	return false
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case frameMsg:
		m.now = m.clock.Now()
		m.status = m.ctrl.Status()
		return m, m.frameTick()

	case queueMsg:
		m.queueText = FormatQueue(m.status.Queue, m.clock.Now())
		return m, m.queueTick()

	case statusMsg:
		m.status = m.ctrl.Status()
		return m, m.waitForStatus()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if !m.status.ControllerVisible {
			return m.updateLogin(msg)
		}
		return m.updateTimer(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.inputsEnabled() {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		m.status.Connection = connection.StateConnecting
		return m, m.login()
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if m.url.Focused() {
			m.url.Blur()
			return m, m.password.Focus()
		}
		m.password.Blur()
		return m, m.url.Focus()
	}

	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.url, cmd = m.url.Update(msg)
	cmds = append(cmds, cmd)
	m.password, cmd = m.password.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updateTimer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.ToggleControls):
		m.showControls = !m.showControls
		m.help.ShowAll = m.showControls
		return m, nil
	}

	if !m.showControls {
		return m, nil
	}
	if cmd, ok := m.keys.intent(msg); ok {
		m.ctrl.Submit(cmd)
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if !m.status.ControllerVisible {
		return m.loginView()
	}

	sections := []string{m.faceView()}
	if m.showControls {
		sections = append(sections, m.controlsView())
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) loginView() string {
	state := m.status.Connection.String()
	if m.status.Connection == connection.StateWrongPassword {
		state = errorStyle.Render(state)
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("splitsync"),
		m.url.View(),
		m.password.View(),
		"",
		"Status: "+state,
	))
}

// displayed returns the snapshot to show, substituting the diagnostic time
// while the timer screen is fresh and the run has not started.
func (m Model) displayed() stopwatch.Snapshot {
	snap := m.face.Snapshot()
	if snap.Phase == stopwatch.NotRunning && m.now.Sub(m.status.VisibleSince) < diagnosticWindow {
		return stopwatch.DiagnosticSnapshot()
	}
	return snap
}

func (m Model) faceView() string {
	snap := m.displayed()
	return m.faceStyle.Render(snap.Time + m.fractionStyle.Render(snap.Fraction))
}

func (m Model) controlsView() string {
	rows := []struct{ label, value string }{
		{"Connection Status", m.status.Connection.String()},
		{"Timer Status", m.status.Phase.String()},
		{"Event Offset", FormatOffset(m.status.EventOffset)},
		{"Command Queue", m.queueText},
		{"Last Received", FormatReceived(m.status.LastMessage, m.status.LastMessageAt)},
		{"Next Runner Password", FormatReceived(m.status.NextPassword, m.status.NextPasswordAt)},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row.label)+row.value)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}
