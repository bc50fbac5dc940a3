// Package stopwatch is the boundary to the timer engine. The Facade maps
// protocol commands onto an Engine and exposes the display snapshot; the
// Stopwatch type is a small in-process Engine for a single-runner run.
package stopwatch

import (
	"fmt"
	"time"
)

// Phase mirrors the engine's run phase.
type Phase int

const (
	NotRunning Phase = iota
	Running
	Ended
	Paused
)

// String returns the phase as the status table shows it.
func (p Phase) String() string {
	switch p {
	case NotRunning:
		return "Not Running"
	case Running:
		return "Running"
	case Ended:
		return "Ended"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Snapshot is what the display renders.
type Snapshot struct {
	Time     string
	Fraction string
	Elapsed  time.Duration
	Phase    Phase
}

// Engine is the opaque stopwatch/splits state machine. Every method is a
// no-op when it does not make sense in the current phase.
type Engine interface {
	Start()
	Split()
	Pause()
	Resume()
	Reset()
	UndoSplit()
	UndoAllPauses()
	SetOffset(d time.Duration)
	Phase() Phase
	Snapshot() Snapshot
}

// DiagnosticSnapshot is the placeholder shown before the real timer is
// trusted on screen.
func DiagnosticSnapshot() Snapshot {
	return Snapshot{Time: "9:59:59", Fraction: ".99", Phase: NotRunning}
}

// FormatElapsed splits a duration into the time and fraction strings used by
// the timer face, e.g. "1:02:03" ".45", "2:03" ".45" or "3" ".45".
func FormatElapsed(d time.Duration) (string, string) {
	if d < 0 {
		d = 0
	}
	hundredths := int64(d / (10 * time.Millisecond))
	fraction := fmt.Sprintf(".%02d", hundredths%100)

	secs := hundredths / 100
	h, m, s := secs/3600, (secs/60)%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s), fraction
	case m > 0:
		return fmt.Sprintf("%d:%02d", m, s), fraction
	default:
		return fmt.Sprintf("%d", s), fraction
	}
}
