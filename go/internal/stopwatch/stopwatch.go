package stopwatch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Stopwatch is an Engine driven by a clockwork clock. A run has a fixed
// number of segments; the split that completes the last one ends the run.
type Stopwatch struct {
	clock    clockwork.Clock
	segments int

	mu          sync.RWMutex
	phase       Phase
	offset      time.Duration
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	endedAt     time.Duration
	splits      []time.Duration
}

// NewStopwatch creates a stopwatch with the given segment count. Counts below
// one are treated as one.
func NewStopwatch(clock clockwork.Clock, segments int) *Stopwatch {
	if segments < 1 {
		segments = 1
	}
	return &Stopwatch{
		clock:    clock,
		segments: segments,
	}
}

// Start begins the run if it is not running yet.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start()
}

func (s *Stopwatch) start() {
	if s.phase != NotRunning {
		return
	}
	s.phase = Running
	s.startedAt = s.clock.Now()
	s.pausedTotal = 0
	s.splits = nil
}

// Split completes the current segment. From NotRunning it starts the run.
func (s *Stopwatch) Split() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case NotRunning:
		s.start()
	case Running:
		now := s.elapsed(s.clock.Now())
		s.splits = append(s.splits, now)
		if len(s.splits) >= s.segments {
			s.phase = Ended
			s.endedAt = now
		}
	}
}

// Pause stops the clock of a running run.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Running {
		s.phase = Paused
		s.pausedAt = s.clock.Now()
	}
}

// Resume continues a paused run.
func (s *Stopwatch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume()
}

func (s *Stopwatch) resume() {
	if s.phase == Paused {
		s.pausedTotal += s.clock.Now().Sub(s.pausedAt)
		s.phase = Running
	}
}

// Reset returns to NotRunning with no time or splits.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = NotRunning
	s.pausedTotal = 0
	s.endedAt = 0
	s.splits = nil
}

// UndoSplit takes back the last split, reopening an ended run.
func (s *Stopwatch) UndoSplit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == NotRunning || len(s.splits) == 0 {
		return
	}
	if s.phase == Ended {
		s.phase = Running
	}
	s.splits = s.splits[:len(s.splits)-1]
}

// UndoAllPauses adds every paused interval back to the run time.
func (s *Stopwatch) UndoAllPauses() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case Paused:
		s.resume()
	case Ended:
		s.endedAt += s.pausedTotal
		if n := len(s.splits); n > 0 {
			s.splits[n-1] = s.endedAt
		}
	}
	s.pausedTotal = 0
}

// SetOffset sets the time the run starts counting from.
func (s *Stopwatch) SetOffset(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = d
}

// Phase returns the current run phase.
func (s *Stopwatch) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Snapshot formats the elapsed time at the clock's current instant.
func (s *Stopwatch) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elapsed := s.elapsed(s.clock.Now())
	text, fraction := FormatElapsed(elapsed)
	return Snapshot{
		Time:     text,
		Fraction: fraction,
		Elapsed:  elapsed,
		Phase:    s.phase,
	}
}

func (s *Stopwatch) elapsed(now time.Time) time.Duration {
	switch s.phase {
	case Running:
		return now.Sub(s.startedAt) - s.pausedTotal + s.offset
	case Paused:
		return s.pausedAt.Sub(s.startedAt) - s.pausedTotal + s.offset
	case Ended:
		return s.endedAt
	default:
		return s.offset
	}
}
