// Package syncctl glues the connection, the delay queue and the timer
// together. All of its state is owned by a single event loop.
package syncctl

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/mcdev12/splitsync/go/internal/connection"
	"github.com/mcdev12/splitsync/go/internal/delayqueue"
	"github.com/mcdev12/splitsync/go/internal/stopwatch"
	"github.com/rs/zerolog/log"
)

const taskBufferSize = 64

// Transport is what the controller needs from the connection manager.
type Transport interface {
	Connect(url, password string)
	Send(raw string) bool
	Events() <-chan connection.Event
	Close()
}

// Timer is what the controller needs from the timer facade.
type Timer interface {
	Apply(cmd command.Command, args []string) bool
	ElapsedMillis() int64
	Phase() stopwatch.Phase
}

// Status is a copy of the controller state for the presentation layer.
type Status struct {
	Connection        connection.State
	Phase             stopwatch.Phase
	EventOffset       time.Duration
	Queue             []delayqueue.Item
	LastMessage       string
	LastMessageAt     time.Time
	NextPassword      string
	NextPasswordAt    time.Time
	ControllerVisible bool
	VisibleSince      time.Time
}

// Controller routes inbound peer commands through the delay queue and turns
// local intents into host commands.
type Controller struct {
	transport Transport
	timer     Timer
	clock     clockwork.Clock
	queue     *delayqueue.Queue

	tasks   chan func()
	updates chan struct{}
	done    chan struct{}

	mu     sync.RWMutex
	status Status
}

// New creates a controller. A negative initial offset is treated as zero.
func New(transport Transport, timer Timer, clock clockwork.Clock, initialOffset time.Duration) *Controller {
	if initialOffset < 0 {
		initialOffset = 0
	}
	c := &Controller{
		transport: transport,
		timer:     timer,
		clock:     clock,
		tasks:     make(chan func(), taskBufferSize),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		status: Status{
			Connection:  connection.StatePendingInput,
			EventOffset: initialOffset,
		},
	}
	c.queue = delayqueue.New(clock, c.post)
	return c
}

// Run is the event loop. It returns when ctx is cancelled, after stopping
// the delay queue and closing the transport.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Dur("event_offset", c.Status().EventOffset).
		Msg("sync controller started")

	defer func() {
		close(c.done)
		c.queue.Stop()
		c.transport.Close()
		log.Info().Msg("sync controller stopped")
	}()

	events := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			c.locked(func() { c.handleEvent(ev) })
		case fn := <-c.tasks:
			c.locked(fn)
		}
		c.notify()
	}
}

// Login starts connecting with the given credentials.
func (c *Controller) Login(url, password string) {
	c.post(func() {
		log.Info().Str("url", url).Msg("logging in")
		c.transport.Connect(url, password)
	})
}

// Submit handles a local UI intent.
func (c *Controller) Submit(cmd command.Command) {
	c.post(func() { c.handleLocal(cmd) })
}

// Updates delivers a coalesced signal whenever the status may have changed.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	s := c.status
	c.mu.RUnlock()

	s.Queue = c.queue.Pending()
	s.Phase = c.timer.Phase()
	return s
}

func (c *Controller) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

func (c *Controller) locked(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Controller) handleEvent(ev connection.Event) {
	switch ev.Type {
	case connection.EventStateChanged:
		c.status.Connection = ev.State
		switch ev.State {
		case connection.StateConnected:
			c.showController(ev.At)
		case connection.StateWrongPassword:
			c.status.ControllerVisible = false
		}
	case connection.EventPasswordConfirmed:
		c.status.NextPassword = ev.Password
		c.status.NextPasswordAt = ev.At
		c.showController(ev.At)
	case connection.EventMessage:
		c.handleMessage(ev.Message, ev.At)
	}
}

// handleMessage applies the delay policy to one inbound message.
func (c *Controller) handleMessage(raw string, at time.Time) {
	msg := command.Decode(raw)

	switch {
	case msg.Command == command.None:
		log.Debug().Str("message", raw).Msg("ignoring unrecognized message")
	case msg.Command == command.SetOffset:
		c.setOffsetArg(msg.Arg(0))
	case msg.Command == command.ControlPassword:
		c.showController(at)
	case msg.Command.Delayable():
		offset := c.status.EventOffset
		if msg.Host {
			offset = 0
		}
		c.queue.Schedule(msg.Command, offset, func() { c.apply(msg) })
	case msg.Command.TimerCommand():
		c.apply(msg)
	}

	if msg.Command == command.ControlPassword {
		c.status.NextPassword = msg.Arg(0)
		c.status.NextPasswordAt = at
	} else {
		c.status.LastMessage = raw
		c.status.LastMessageAt = at
	}
}

// handleLocal sends a host command and applies it here without delay.
func (c *Controller) handleLocal(cmd command.Command) {
	switch {
	case cmd == command.SetOffset:
		ms := c.timer.ElapsedMillis()
		c.transport.Send(command.WithHost(command.Encode(cmd, strconv.FormatInt(ms, 10))))
		c.setOffset(time.Duration(ms) * time.Millisecond)
	case cmd.Delayable():
		c.transport.Send(command.WithHost(command.Encode(cmd)))
		c.apply(command.Message{Command: cmd})
	default:
		log.Debug().Stringer("command", cmd).Msg("ignoring local intent")
	}
}

func (c *Controller) apply(msg command.Message) {
	if !c.timer.Apply(msg.Command, msg.Args) {
		return
	}
	if msg.Command == command.Reset {
		c.setOffset(0)
	}
}

func (c *Controller) setOffsetArg(arg string) {
	ms, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || ms < 0 {
		log.Debug().Str("offset", arg).Msg("ignoring invalid event offset")
		return
	}
	c.setOffset(time.Duration(ms) * time.Millisecond)
}

func (c *Controller) setOffset(offset time.Duration) {
	if offset == c.status.EventOffset {
		return
	}
	log.Info().
		Dur("from", c.status.EventOffset).
		Dur("to", offset).
		Msg("event offset changed")
	c.status.EventOffset = offset
}

func (c *Controller) showController(at time.Time) {
	if c.status.ControllerVisible {
		return
	}
	c.status.ControllerVisible = true
	c.status.VisibleSince = at
}
