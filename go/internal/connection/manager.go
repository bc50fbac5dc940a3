// Package connection owns the client side of the websocket link: dialing,
// the password handshake, and the fixed-interval reconnect policy.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/rs/zerolog/log"
)

// Subprotocol is the application subprotocol negotiated on every connection.
const Subprotocol = "rust-websocket"

var errRejected = errors.New("authentication rejected")

// Config holds configuration for the client connection
type Config struct {
	Subprotocol      string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
	EventBufferSize  int
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Subprotocol:      Subprotocol,
		ReconnectDelay:   1000 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendBufferSize:   64,
		EventBufferSize:  256,
	}
}

// Manager is the connection actor. It owns the state machine and publishes
// state changes and inbound messages on Events.
type Manager struct {
	config Config
	dialer *websocket.Dialer
	clock  clockwork.Clock
	events chan Event

	mu           sync.Mutex
	state        State
	nextPassword string
	session      *session
	cancel       context.CancelFunc
	done         chan struct{}
}

type session struct {
	conn *websocket.Conn
	send chan []byte
}

// NewManager creates a manager in StatePendingInput.
func NewManager(config Config, clock clockwork.Clock) *Manager {
	return &Manager{
		config: config,
		dialer: &websocket.Dialer{
			Subprotocols:     []string{config.Subprotocol},
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
		clock:  clock,
		events: make(chan Event, config.EventBufferSize),
		state:  StatePendingInput,
	}
}

// Events returns the event stream. It is never closed.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NextPassword returns the password rotated in by the last handshake.
func (m *Manager) NextPassword() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextPassword
}

// Connect starts a reconnect task for url, replacing any running one. The
// task retries indefinitely until the password is rejected or Close is
// called.
func (m *Manager) Connect(url, password string) {
	m.stopTask()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(ctx, url, password)
	}()
}

// Close cancels the reconnect task and closes the transport.
func (m *Manager) Close() {
	m.stopTask()
}

func (m *Manager) stopTask() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Send queues raw for delivery. Outside StateConnected the message is
// dropped; nothing is buffered for later.
func (m *Manager) Send(raw string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.session == nil {
		log.Debug().
			Stringer("state", m.state).
			Str("message", raw).
			Msg("not connected, dropping outbound message")
		return false
	}

	select {
	case m.session.send <- []byte(raw):
		return true
	default:
		log.Warn().Str("message", raw).Msg("send buffer full, dropping outbound message")
		return false
	}
}

func (m *Manager) run(ctx context.Context, url, password string) {
	m.setState(ctx, StateConnecting)

	for {
		err := m.serve(ctx, url, password)
		if ctx.Err() != nil {
			return
		}
		if m.State() == StateWrongPassword {
			log.Warn().Err(err).Str("url", url).Msg("authentication failed")
			return
		}

		m.setState(ctx, StateConnecting)
		log.Info().
			Err(err).
			Str("url", url).
			Dur("retry_in", m.config.ReconnectDelay).
			Msg("connection lost, scheduling reconnect")

		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.config.ReconnectDelay):
		}
	}
}

// serve runs one transport connection until it closes.
func (m *Manager) serve(ctx context.Context, url, password string) error {
	conn, _, err := m.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	log.Debug().
		Str("url", url).
		Str("subprotocol", conn.Subprotocol()).
		Msg("transport open")

	m.setState(ctx, StateAuthenticating)

	// The password is the first frame on the wire, before the writer starts.
	conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(password)); err != nil {
		m.setState(ctx, StateWrongPassword)
		return fmt.Errorf("send password: %w", err)
	}

	s := &session{
		conn: conn,
		send: make(chan []byte, m.config.SendBufferSize),
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		m.mu.Lock()
		m.session = nil
		m.mu.Unlock()
	}()

	go m.writePump(s, stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadLimit(m.config.MaxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.State() == StateAuthenticating {
				m.setState(ctx, StateWrongPassword)
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := m.handleMessage(ctx, string(data)); err != nil {
			return err
		}
	}
}

// handleMessage consumes the handshake acknowledgement and forwards
// everything else.
func (m *Manager) handleMessage(ctx context.Context, raw string) error {
	if m.State() != StateAuthenticating {
		m.emit(ctx, Event{Type: EventMessage, Message: raw})
		return nil
	}

	msg := command.Decode(raw)
	if msg.Command != command.ControlPassword {
		m.emit(ctx, Event{Type: EventMessage, Message: raw})
		m.setState(ctx, StateWrongPassword)
		return errRejected
	}

	next := msg.Arg(0)
	m.mu.Lock()
	m.nextPassword = next
	m.mu.Unlock()

	m.setState(ctx, StateConnected)
	m.emit(ctx, Event{Type: EventPasswordConfirmed, Password: next})
	return nil
}

// writePump handles sending messages to the WebSocket connection
func (m *Manager) writePump(s *session, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write message to WebSocket")
				s.conn.Close()
				return
			}
		}
	}
}

func (m *Manager) setState(ctx context.Context, state State) {
	m.mu.Lock()
	prev := m.state
	if prev == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	log.Info().
		Stringer("from", prev).
		Stringer("to", state).
		Msg("connection state changed")

	m.emit(ctx, Event{Type: EventStateChanged, State: state})
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	ev.At = m.clock.Now()
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
