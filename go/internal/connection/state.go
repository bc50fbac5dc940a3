package connection

import "time"

// State is the connection/authentication state of a session.
type State int

const (
	StatePendingInput State = iota
	StateWrongPassword
	StateConnecting
	StateAuthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StatePendingInput:
		return "Pending Password Input"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateConnected:
		return "Connected"
	case StateWrongPassword:
		return "Authentication Failed"
	default:
		return "Unknown"
	}
}

// EventType identifies what an Event carries.
type EventType int

const (
	// EventStateChanged carries the new State.
	EventStateChanged EventType = iota
	// EventMessage carries an inbound message, verbatim.
	EventMessage
	// EventPasswordConfirmed carries the next-session password from the
	// handshake acknowledgement.
	EventPasswordConfirmed
)

// Event is published on the manager's event stream.
type Event struct {
	Type     EventType
	State    State
	Message  string
	Password string
	At       time.Time
}
