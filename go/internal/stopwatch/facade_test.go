package stopwatch

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/command"
)

func TestFacadeDispatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var phases []Phase
	f := NewFacade(NewStopwatch(clock, 1), func(p Phase) { phases = append(phases, p) })

	steps := []struct {
		cmd  command.Command
		want Phase
	}{
		{command.StartTimer, Running},
		{command.Pause, Paused},
		{command.Resume, Running},
		{command.Split, Ended},
		{command.UndoSplit, Running},
		{command.UndoAllPauses, Running},
		{command.Reset, NotRunning},
	}
	for _, s := range steps {
		if !f.Apply(s.cmd, nil) {
			t.Fatalf("Apply(%v) reported unsupported", s.cmd)
		}
		if f.Phase() != s.want {
			t.Fatalf("after %v phase = %v, want %v", s.cmd, f.Phase(), s.want)
		}
	}
	if len(phases) != len(steps) {
		t.Fatalf("phase callback fired %d times, want %d", len(phases), len(steps))
	}
}

func TestFacadeRejectsNonTimerCommands(t *testing.T) {
	f := NewFacade(NewStopwatch(clockwork.NewFakeClock(), 1), nil)
	for _, c := range []command.Command{command.None, command.SetOffset, command.ControlPassword} {
		if f.Apply(c, []string{"1"}) {
			t.Errorf("Apply(%v) should report false", c)
		}
	}
}

func TestRunOffsetOnlyBeforeStart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := NewFacade(NewStopwatch(clock, 1), nil)

	f.Apply(command.RunOffset, []string{"3000"})
	if got := f.Snapshot().Elapsed; got != 3*time.Second {
		t.Fatalf("run offset not applied: %v", got)
	}

	f.Apply(command.RunOffset, []string{"bogus"})
	f.Apply(command.RunOffset, nil)
	if got := f.Snapshot().Elapsed; got != 3*time.Second {
		t.Fatalf("invalid run offset changed the run: %v", got)
	}

	f.Apply(command.StartTimer, nil)
	f.Apply(command.RunOffset, []string{"9000"})
	if got := f.Snapshot().Elapsed; got != 3*time.Second {
		t.Fatalf("run offset changed a running timer: %v", got)
	}

	f.Apply(command.Reset, nil)
	if got := f.Snapshot().Elapsed; got != 0 {
		t.Fatalf("reset should zero the run offset, got %v", got)
	}
}

func TestElapsedMillisTruncatesToHundredths(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := NewFacade(NewStopwatch(clock, 1), nil)
	f.Apply(command.StartTimer, nil)
	clock.Advance(2345678 * time.Microsecond)
	if got := f.ElapsedMillis(); got != 2340 {
		t.Fatalf("ElapsedMillis() = %d, want 2340", got)
	}
}

func TestDiagnosticSnapshot(t *testing.T) {
	d := DiagnosticSnapshot()
	if d.Time != "9:59:59" || d.Fraction != ".99" {
		t.Fatalf("diagnostic snapshot = %+v", d)
	}
}
