// Package command implements the plain-text wire protocol shared by the
// controller, the relay and every viewer: one whitespace-tokenized command
// per message, optionally wrapped in a "host" prefix.
package command

import "strings"

// HostPrefix marks a command originated by the privileged controller. Host
// commands bypass latency compensation on the receiving side.
const HostPrefix = "host"

// Command is a tag drawn from the closed set of protocol commands.
type Command int

const (
	// None is the sentinel for empty or unrecognized input.
	None Command = iota
	StartTimer
	Resume
	Pause
	Reset
	Split
	UndoSplit
	UndoAllPauses
	RunOffset
	SetOffset
	ControlPassword
)

type tokenInfo struct {
	token string
	// delayable commands are held back by the event offset on viewers
	delayable bool
	// timer commands are applied to the stopwatch
	timer bool
}

var table = map[Command]tokenInfo{
	StartTimer:      {token: "starttimer", delayable: true, timer: true},
	Resume:          {token: "resume", delayable: true, timer: true},
	Pause:           {token: "pause", delayable: true, timer: true},
	Reset:           {token: "reset", delayable: true, timer: true},
	Split:           {token: "split", delayable: true, timer: true},
	UndoSplit:       {token: "unsplit", delayable: true, timer: true},
	UndoAllPauses:   {token: "undoallpauses", delayable: true, timer: true},
	RunOffset:       {token: "runoffset", timer: true},
	SetOffset:       {token: "set_offset"},
	ControlPassword: {token: "control_password"},
}

var byToken = func() map[string]Command {
	m := make(map[string]Command, len(table))
	for c, s := range table {
		m[s.token] = c
	}
	return m
}()

// Lookup maps a wire token to its command. Unknown tokens return None.
func Lookup(token string) Command {
	return byToken[token]
}

// Token returns the wire token, or "" for None.
func (c Command) Token() string {
	return table[c].token
}

func (c Command) String() string {
	if c == None {
		return "none"
	}
	return c.Token()
}

// Delayable reports whether the event offset may defer the command.
func (c Command) Delayable() bool {
	return table[c].delayable
}

// TimerCommand reports whether the command acts on the stopwatch.
func (c Command) TimerCommand() bool {
	return table[c].timer
}

// All returns every command in the closed set, in declaration order.
func All() []Command {
	return []Command{
		StartTimer, Resume, Pause, Reset, Split,
		UndoSplit, UndoAllPauses, RunOffset, SetOffset, ControlPassword,
	}
}

// Message is one decoded wire message. Messages are immutable once decoded.
type Message struct {
	Command Command
	Args    []string
	Host    bool
	Raw     string
}

// Arg returns the i-th argument or "" when absent.
func (m Message) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	return m.Args[i]
}

// Decode parses a raw wire message. It never fails: input it does not
// understand decodes to a Message whose Command is None.
func Decode(raw string) Message {
	msg := Message{Raw: raw}
	tokens := strings.Fields(raw)
	if len(tokens) > 0 && tokens[0] == HostPrefix {
		msg.Host = true
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return msg
	}

	msg.Command = Lookup(tokens[0])
	if len(tokens) > 1 {
		msg.Args = append([]string(nil), tokens[1:]...)
	}
	return msg
}

// Encode builds the wire form of a command. It never adds the host prefix;
// see WithHost.
func Encode(c Command, args ...string) string {
	tokens := make([]string, 0, len(args)+1)
	tokens = append(tokens, c.Token())
	tokens = append(tokens, args...)
	return strings.Join(tokens, " ")
}

// WithHost wraps an encoded command in the host prefix.
func WithHost(wire string) string {
	return HostPrefix + " " + wire
}
