package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// OriginHeader names the relay instance that published a frame.
const OriginHeader = "Splitsync-Relay"

// BridgeConfig holds configuration for the NATS bridge
type BridgeConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultBridgeConfig returns default NATS bridge configuration
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           nats.DefaultURL,
		Subject:       "splitsync.commands",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Bridge shares relayed frames with other relay instances over core NATS
type Bridge struct {
	hub        *Hub
	nc         *nats.Conn
	config     BridgeConfig
	instanceID string
}

// NewBridge connects to NATS and registers itself as the hub's forwarder
func NewBridge(hub *Hub, config BridgeConfig) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name("splitsync-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b := &Bridge{
		hub:        hub,
		nc:         nc,
		config:     config,
		instanceID: uuid.New().String(),
	}
	hub.SetForwarder(b)
	return b, nil
}

// Start relays frames published by other instances until ctx is done
func (b *Bridge) Start(ctx context.Context) error {
	sub, err := b.nc.Subscribe(b.config.Subject, b.handleMsg)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.config.Subject, err)
	}
	defer sub.Unsubscribe()

	log.Info().
		Str("subject", b.config.Subject).
		Str("instance_id", b.instanceID).
		Msg("NATS bridge started")

	<-ctx.Done()
	log.Info().Msg("NATS bridge shutting down")
	return nil
}

func (b *Bridge) handleMsg(msg *nats.Msg) {
	if msg.Header.Get(OriginHeader) == b.instanceID {
		return
	}
	b.hub.Broadcast("", msg.Data)
}

// Forward publishes a locally relayed frame
func (b *Bridge) Forward(data []byte) {
	msg := nats.NewMsg(b.config.Subject)
	msg.Header.Set(OriginHeader, b.instanceID)
	msg.Data = data
	if err := b.nc.PublishMsg(msg); err != nil {
		log.Error().Err(err).Str("subject", b.config.Subject).Msg("failed to publish frame")
	}
}

// Stop closes the NATS connection
func (b *Bridge) Stop() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
