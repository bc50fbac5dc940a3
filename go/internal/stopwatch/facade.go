package stopwatch

import (
	"strconv"
	"time"

	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/rs/zerolog/log"
)

type handler func(f *Facade, args []string)

// handlers is the closed dispatch table from timer commands to the engine.
var handlers = map[command.Command]handler{
	command.StartTimer:    func(f *Facade, _ []string) { f.engine.Start() },
	command.Resume:        func(f *Facade, _ []string) { f.engine.Resume() },
	command.Pause:         func(f *Facade, _ []string) { f.engine.Pause() },
	command.Split:         func(f *Facade, _ []string) { f.engine.Split() },
	command.UndoSplit:     func(f *Facade, _ []string) { f.engine.UndoSplit() },
	command.UndoAllPauses: func(f *Facade, _ []string) { f.engine.UndoAllPauses() },
	command.Reset: func(f *Facade, _ []string) {
		f.engine.Reset()
		f.setRunOffset("0")
	},
	command.RunOffset: func(f *Facade, args []string) {
		if len(args) == 0 {
			return
		}
		f.setRunOffset(args[0])
	},
}

// Facade applies protocol commands to an Engine and reports phase changes.
type Facade struct {
	engine  Engine
	onPhase func(Phase)
}

// NewFacade wraps engine. onPhase, if set, is called after every applied
// command with the engine's current phase.
func NewFacade(engine Engine, onPhase func(Phase)) *Facade {
	return &Facade{
		engine:  engine,
		onPhase: onPhase,
	}
}

// Apply runs cmd against the engine. It returns false when cmd is not a
// timer command.
func (f *Facade) Apply(cmd command.Command, args []string) bool {
	h, ok := handlers[cmd]
	if !ok {
		return false
	}
	h(f, args)
	if f.onPhase != nil {
		f.onPhase(f.engine.Phase())
	}
	return true
}

// Phase returns the engine's current phase.
func (f *Facade) Phase() Phase {
	return f.engine.Phase()
}

// Snapshot returns what the timer face renders right now.
func (f *Facade) Snapshot() Snapshot {
	return f.engine.Snapshot()
}

// ElapsedMillis returns the displayed time in milliseconds, at the
// hundredths precision the timer face shows.
func (f *Facade) ElapsedMillis() int64 {
	return f.engine.Snapshot().Elapsed.Truncate(10 * time.Millisecond).Milliseconds()
}

// setRunOffset only takes effect before the run starts.
func (f *Facade) setRunOffset(arg string) {
	if f.engine.Phase() != NotRunning {
		return
	}
	ms, err := strconv.Atoi(arg)
	if err != nil || ms < 0 {
		log.Debug().Str("offset", arg).Msg("ignoring invalid run offset")
		return
	}
	f.engine.SetOffset(time.Duration(ms) * time.Millisecond)
}
