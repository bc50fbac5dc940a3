package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mcdev12/splitsync/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "splitsync",
	Short: "splitsync - latency-compensated remote stopwatch",
	Long: `splitsync keeps viewer timers in step with a runner's timer across a shared
websocket session, holding each command back by a per-viewer event offset.`,
	SilenceUsage: true,
}

var (
	configPath string
	urlFlag    string
	password   string
	offsetMS   int
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "relay websocket URL")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "session password (logs in at startup)")
	rootCmd.PersistentFlags().IntVar(&offsetMS, "offset", 0, "initial event offset in milliseconds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(relayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers explicitly set flags over config.Load.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Client.URL = urlFlag
	}
	if flags.Changed("password") {
		cfg.Client.Password = password
	}
	if flags.Changed("offset") {
		cfg.Client.OffsetMS = config.ClampOffset(offsetMS)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig, out io.Writer) {
	log.Logger = log.Output(out)
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
}
