package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/splitsync/go/internal/config"
	"github.com/mcdev12/splitsync/go/internal/relay"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the session relay server",
	Long: `Accepts websocket clients that log in with a runner password and relays every
command frame to the other clients of the session.`,
	RunE: runRelay,
}

var (
	relayAddr      string
	relayPasswords []string
	natsURL        string
)

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "listen address")
	relayCmd.Flags().StringSliceVar(&relayPasswords, "passwords", nil, "ordered runner passwords")
	relayCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server shared by relay instances")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Relay.Addr = relayAddr
	}
	if cmd.Flags().Changed("passwords") {
		cfg.Relay.Passwords = relayPasswords
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.Relay.NATSURL = natsURL
	}

	setupLogging(cfg.Log, zerolog.ConsoleWriter{Out: os.Stderr})

	service, err := relay.NewService(relayConfig(cfg.Relay))
	if err != nil {
		return err
	}

	log.Info().
		Str("addr", cfg.Relay.Addr).
		Int("passwords", len(cfg.Relay.Passwords)).
		Str("nats_url", cfg.Relay.NATSURL).
		Msg("starting relay")

	server := setupServer(service, cfg.Relay.Addr)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := service.Start(ctx); err != nil {
			log.Error().Err(err).Msg("relay service failed")
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serveErr:
		cancel()
		<-stopped
		return err
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	<-stopped

	log.Info().Msg("relay shutdown complete")
	return nil
}

func relayConfig(cfg config.RelayConfig) relay.Config {
	rc := relay.DefaultConfig()
	rc.Passwords = cfg.Passwords
	if cfg.NATSURL != "" {
		bridge := relay.DefaultBridgeConfig()
		bridge.URL = cfg.NATSURL
		bridge.Subject = cfg.Subject
		rc.Bridge = &bridge
	}
	return rc
}

func setupServer(service *relay.Service, addr string) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	service.RegisterRoutes(mux)

	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}
