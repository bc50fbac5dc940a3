package relay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the relay server: an authenticating hub plus an optional NATS
// bridge
type Service struct {
	hub       *Hub
	wsHandler *WebSocketHandler
	bridge    *Bridge
}

// Config holds configuration for the relay service. A nil Bridge runs the
// relay standalone.
type Config struct {
	Hub       HubConfig
	Passwords []string
	Bridge    *BridgeConfig
}

// DefaultConfig returns default configuration for the relay service
func DefaultConfig() Config {
	return Config{
		Hub: DefaultHubConfig(),
	}
}

// NewService creates a new relay service
func NewService(config Config) (*Service, error) {
	if len(config.Passwords) == 0 {
		log.Warn().Msg("relay has no runner passwords, every login will be rejected")
	}

	hub := NewHub(config.Hub, NewPasswordList(config.Passwords))

	s := &Service{hub: hub}
	s.wsHandler = NewWebSocketHandler(hub, s)

	if config.Bridge != nil {
		bridge, err := NewBridge(hub, *config.Bridge)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS bridge: %w", err)
		}
		s.bridge = bridge
	}

	return s, nil
}

// Start runs the relay until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("bridge", s.bridge != nil).Msg("starting relay service")

	go s.hub.Start(ctx)

	if s.bridge != nil {
		go func() {
			if err := s.bridge.Start(ctx); err != nil {
				log.Error().Err(err).Msg("NATS bridge failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("relay service shutting down")
	return s.Stop()
}

// Stop releases the bridge. The hub stops with the context given to Start.
func (s *Service) Stop() error {
	if s.bridge != nil {
		if err := s.bridge.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop NATS bridge")
		}
	}
	log.Info().Msg("relay service stopped")
	return nil
}

// RegisterRoutes registers the relay HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("relay routes registered")
}

// GetStats returns statistics about the relay service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.hub.GetConnectionStats()
	stats["service"] = "relay"
	stats["bridge"] = s.bridge != nil
	return stats
}
