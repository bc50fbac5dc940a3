package connection

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// peer is the server end of one accepted connection.
type peer struct {
	conn     *websocket.Conn
	password string
	received chan string
}

func (p *peer) say(t *testing.T, msg string) {
	t.Helper()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

type testServer struct {
	*httptest.Server
	peers chan *peer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{peers: make(chan *peer, 8)}
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, first, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		p := &peer{conn: conn, password: string(first), received: make(chan string, 16)}
		ts.peers <- p
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					close(p.received)
					return
				}
				p.received <- string(data)
			}
		}()
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) accept(t *testing.T) *peer {
	t.Helper()
	select {
	case p := <-ts.peers:
		t.Cleanup(func() { p.conn.Close() })
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func (ts *testServer) expectNoConnection(t *testing.T) {
	t.Helper()
	select {
	case p := <-ts.peers:
		t.Fatalf("unexpected connection with password %q", p.password)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func expectState(t *testing.T, m *Manager, want State) {
	t.Helper()
	ev := nextEvent(t, m)
	if ev.Type != EventStateChanged || ev.State != want {
		t.Fatalf("got event %+v, want state change to %v", ev, want)
	}
}

func expectMessage(t *testing.T, m *Manager, want string) {
	t.Helper()
	ev := nextEvent(t, m)
	if ev.Type != EventMessage || ev.Message != want {
		t.Fatalf("got event %+v, want message %q", ev, want)
	}
}

func connected(t *testing.T, ts *testServer, clock clockwork.Clock) (*Manager, *peer) {
	t.Helper()
	m := NewManager(DefaultConfig(), clock)
	t.Cleanup(m.Close)

	m.Connect(ts.url(), "abc123")
	expectState(t, m, StateConnecting)
	p := ts.accept(t)
	expectState(t, m, StateAuthenticating)
	p.say(t, "control_password xyz789")
	expectState(t, m, StateConnected)
	if ev := nextEvent(t, m); ev.Type != EventPasswordConfirmed || ev.Password != "xyz789" {
		t.Fatalf("got %+v, want password confirmation", ev)
	}
	return m, p
}

func TestHandshake(t *testing.T) {
	ts := newTestServer(t)
	m, p := connected(t, ts, clockwork.NewFakeClock())

	if p.password != "abc123" {
		t.Fatalf("first frame = %q, want the password", p.password)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %v", m.State())
	}
	if m.NextPassword() != "xyz789" {
		t.Fatalf("NextPassword() = %q", m.NextPassword())
	}
}

func TestMessagesAreForwardedVerbatimInOrder(t *testing.T) {
	ts := newTestServer(t)
	m, p := connected(t, ts, clockwork.NewFakeClock())

	p.say(t, "host split")
	p.say(t, "  set_offset 2000 ")
	p.say(t, "mystery token")
	p.say(t, "control_password next1")

	expectMessage(t, m, "host split")
	expectMessage(t, m, "  set_offset 2000 ")
	expectMessage(t, m, "mystery token")
	expectMessage(t, m, "control_password next1")
}

func TestCloseWhileAuthenticatingIsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	clock := clockwork.NewFakeClock()
	m := NewManager(DefaultConfig(), clock)
	defer m.Close()

	m.Connect(ts.url(), "nope")
	expectState(t, m, StateConnecting)
	p := ts.accept(t)
	expectState(t, m, StateAuthenticating)

	p.conn.Close()
	expectState(t, m, StateWrongPassword)

	clock.Advance(5 * time.Second)
	ts.expectNoConnection(t)
	if m.State() != StateWrongPassword {
		t.Fatalf("state = %v, want terminal WrongPassword", m.State())
	}
}

func TestUnexpectedReplyWhileAuthenticatingIsRejection(t *testing.T) {
	ts := newTestServer(t)
	m := NewManager(DefaultConfig(), clockwork.NewFakeClock())
	defer m.Close()

	m.Connect(ts.url(), "nope")
	expectState(t, m, StateConnecting)
	p := ts.accept(t)
	expectState(t, m, StateAuthenticating)

	p.say(t, "go away")
	expectMessage(t, m, "go away")
	expectState(t, m, StateWrongPassword)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	ts := newTestServer(t)
	clock := clockwork.NewFakeClock()
	m, p := connected(t, ts, clock)

	p.conn.Close()
	expectState(t, m, StateConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reconnect backoff never armed: %v", err)
	}

	clock.Advance(999 * time.Millisecond)
	ts.expectNoConnection(t)

	clock.Advance(time.Millisecond)
	again := ts.accept(t)
	if again.password != "abc123" {
		t.Fatalf("reconnect used password %q, want the first one", again.password)
	}
	expectState(t, m, StateAuthenticating)
}

func TestReconnectAfterDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	url := "ws://" + ln.Addr().String()
	ln.Close()

	clock := clockwork.NewFakeClock()
	m := NewManager(DefaultConfig(), clock)
	defer m.Close()

	m.Connect(url, "abc123")
	expectState(t, m, StateConnecting)

	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := clock.BlockUntilContext(ctx, 1)
		cancel()
		if err != nil {
			t.Fatalf("attempt %d: retry never armed: %v", attempt, err)
		}
		if m.State() != StateConnecting {
			t.Fatalf("attempt %d: state = %v, want Connecting", attempt, m.State())
		}
		clock.Advance(time.Second)
	}

	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %+v while retrying a refused dial", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if m.State() != StateConnecting {
		t.Fatalf("state = %v, want Connecting", m.State())
	}
}

func TestSendOnlyWhenConnected(t *testing.T) {
	ts := newTestServer(t)
	m := NewManager(DefaultConfig(), clockwork.NewFakeClock())
	defer m.Close()

	if m.Send("host split") {
		t.Fatal("Send succeeded before Connect")
	}

	m.Connect(ts.url(), "abc123")
	expectState(t, m, StateConnecting)
	p := ts.accept(t)
	expectState(t, m, StateAuthenticating)
	if m.Send("host pause") {
		t.Fatal("Send succeeded while authenticating")
	}

	p.say(t, "control_password xyz789")
	expectState(t, m, StateConnected)
	if !m.Send("host split") {
		t.Fatal("Send failed while connected")
	}

	select {
	case got := <-p.received:
		if got != "host split" {
			t.Fatalf("server received %q; messages sent before authentication must be dropped", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestCloseCancelsReconnect(t *testing.T) {
	ts := newTestServer(t)
	clock := clockwork.NewFakeClock()
	m, p := connected(t, ts, clock)

	p.conn.Close()
	expectState(t, m, StateConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reconnect backoff never armed: %v", err)
	}

	m.Close()
	clock.Advance(time.Minute)
	ts.expectNoConnection(t)
}

func TestConnectAfterWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	m := NewManager(DefaultConfig(), clockwork.NewFakeClock())
	defer m.Close()

	m.Connect(ts.url(), "nope")
	expectState(t, m, StateConnecting)
	p := ts.accept(t)
	expectState(t, m, StateAuthenticating)
	p.conn.Close()
	expectState(t, m, StateWrongPassword)

	m.Connect(ts.url(), "abc123")
	expectState(t, m, StateConnecting)
	p = ts.accept(t)
	if p.password != "abc123" {
		t.Fatalf("password = %q", p.password)
	}
	expectState(t, m, StateAuthenticating)
}

func TestStateStrings(t *testing.T) {
	want := map[State]string{
		StatePendingInput:   "Pending Password Input",
		StateConnecting:     "Connecting",
		StateAuthenticating: "Authenticating",
		StateConnected:      "Connected",
		StateWrongPassword:  "Authentication Failed",
		State(99):           "Unknown",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), w)
		}
	}
}
