// Package delayqueue holds peer commands back for the configured event
// offset so that every viewer applies them at the same wall-clock instant.
package delayqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/rs/zerolog/log"
)

// PostFunc hands a closure to the owner's event loop. Timer fires never run
// apply functions on the timer goroutine; they are always posted.
type PostFunc func(func())

// Inline runs posted closures on the calling goroutine. Useful when the
// queue has no event loop of its own.
func Inline(fn func()) { fn() }

// Item is a pending command as shown to the UI.
type Item struct {
	ID      uuid.UUID
	Command command.Command
	DueAt   time.Time
}

type entry struct {
	Item
	apply func()
	timer clockwork.Timer
	stop  chan struct{}
}

// Queue schedules delayed command application. Items are removed by their
// own id when their timer fires, so the pending list stays exact even when
// items with different offsets overtake each other.
type Queue struct {
	clock clockwork.Clock
	post  PostFunc

	mu    sync.Mutex
	items []*entry // arrival order
}

// New creates a queue that arms timers on clock and posts fires through post.
func New(clock clockwork.Clock, post PostFunc) *Queue {
	if post == nil {
		post = Inline
	}
	return &Queue{
		clock: clock,
		post:  post,
	}
}

// Schedule applies cmd after offset. A non-positive offset applies it
// synchronously and returns (uuid.Nil, false). Otherwise it returns the id
// of the pending item.
func (q *Queue) Schedule(cmd command.Command, offset time.Duration, apply func()) (uuid.UUID, bool) {
	if offset <= 0 {
		apply()
		return uuid.Nil, false
	}

	e := &entry{
		Item: Item{
			ID:      uuid.New(),
			Command: cmd,
			DueAt:   q.clock.Now().Add(offset),
		},
		apply: apply,
		timer: q.clock.NewTimer(offset),
		stop:  make(chan struct{}),
	}

	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	go func(e *entry) {
		select {
		case <-e.timer.Chan():
			q.post(func() { q.fire(e.ID) })
		case <-e.stop:
			stopAndDrainTimer(e.timer)
		}
	}(e)

	log.Debug().
		Str("item_id", e.ID.String()).
		Stringer("command", cmd).
		Dur("offset", offset).
		Time("due_at", e.DueAt).
		Msg("command delayed")

	return e.ID, true
}

// fire applies the item and then removes it. Items cancelled while their
// fire was in flight are skipped.
func (q *Queue) fire(id uuid.UUID) {
	q.mu.Lock()
	e := q.find(id)
	q.mu.Unlock()
	if e == nil {
		return
	}

	e.apply()

	q.mu.Lock()
	q.remove(id)
	q.mu.Unlock()

	log.Debug().
		Str("item_id", id.String()).
		Stringer("command", e.Command).
		Msg("delayed command applied")
}

// Cancel drops a pending item before it fires. It reports whether the item
// was still pending.
func (q *Queue) Cancel(id uuid.UUID) bool {
	q.mu.Lock()
	e := q.remove(id)
	q.mu.Unlock()
	if e == nil {
		return false
	}
	close(e.stop)
	return true
}

// Stop cancels every pending item. Only used on teardown.
func (q *Queue) Stop() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, e := range items {
		close(e.stop)
	}
	if len(items) > 0 {
		log.Debug().Int("dropped", len(items)).Msg("delay queue stopped")
	}
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a snapshot of the pending items in arrival order.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	for i, e := range q.items {
		out[i] = e.Item
	}
	return out
}

func (q *Queue) find(id uuid.UUID) *entry {
	for _, e := range q.items {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (q *Queue) remove(id uuid.UUID) *entry {
	for i, e := range q.items {
		if e.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return e
		}
	}
	return nil
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
