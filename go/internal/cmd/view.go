package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/splitsync/go/internal/connection"
	"github.com/mcdev12/splitsync/go/internal/display"
	"github.com/mcdev12/splitsync/go/internal/stopwatch"
	"github.com/mcdev12/splitsync/go/internal/syncctl"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Run the timer display",
	Long: `Connects to a relay and shows a timer that follows the session's commands,
applying plain commands after the event offset and host commands immediately.`,
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	setupLogging(cfg.Log, logFile)

	clock := clockwork.NewRealClock()
	manager := connection.NewManager(connection.DefaultConfig(), clock)
	timer := stopwatch.NewFacade(
		stopwatch.NewStopwatch(clock, cfg.Client.Segments),
		func(phase stopwatch.Phase) {
			log.Info().Stringer("phase", phase).Msg("timer phase changed")
		},
	)
	ctrl := syncctl.New(manager, timer, clock, time.Duration(cfg.Client.OffsetMS)*time.Millisecond)

	log.Info().
		Str("url", cfg.Client.URL).
		Int("offset_ms", cfg.Client.OffsetMS).
		Int("segments", cfg.Client.Segments).
		Msg("starting viewer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := ctrl.Run(ctx); err != nil {
			log.Error().Err(err).Msg("controller stopped")
		}
	}()

	program := tea.NewProgram(display.New(ctrl, timer, clock, cfg.Client, cfg.Display), tea.WithAltScreen())
	_, runErr := program.Run()

	cancel()
	<-stopped
	log.Info().Msg("viewer stopped")

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
