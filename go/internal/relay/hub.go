// Package relay is the server side of the protocol: it authenticates
// websocket clients by password and fans every command out to the other
// clients of the session.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/splitsync/go/internal/command"
	"github.com/mcdev12/splitsync/go/internal/connection"
	"github.com/rs/zerolog/log"
)

// Forwarder receives every frame relayed from a local client, e.g. to share
// it with other relay instances.
type Forwarder interface {
	Forward(data []byte)
}

// Hub manages authenticated WebSocket connections for one session
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader  websocket.Upgrader
	config    HubConfig
	auth      Authenticator
	forwarder Forwarder

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *Hub

	ConnectedAt time.Time
}

// HubConfig holds configuration for relay WebSocket connections
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	AuthTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a frame to deliver to every connection except From
type BroadcastMessage struct {
	From string
	Data []byte
}

// DefaultHubConfig returns default relay WebSocket configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		AuthTimeout:     10 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Viewers are browser sources and overlays served from anywhere
			return true
		},
	}
}

// NewHub creates a hub that admits clients passing auth
func NewHub(config HubConfig, auth Authenticator) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
			Subprotocols:    []string{connection.Subprotocol},
		},
		config:      config,
		auth:        auth,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetForwarder registers where locally received frames are also sent.
// Must be called before Start.
func (h *Hub) SetForwarder(f Forwarder) {
	h.forwarder = f
}

// Start begins processing broadcast messages
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("relay hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay hub shutting down")
			h.closeAll()
			return
		case message := <-h.broadcastCh:
			h.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts the
// password handshake
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		hub:         h,
		ConnectedAt: time.Now(),
	}

	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// Broadcast queues a frame for every authenticated connection except from.
func (h *Hub) Broadcast(from string, data []byte) {
	select {
	case h.broadcastCh <- BroadcastMessage{From: from, Data: data}:
	default:
		log.Warn().Str("from", from).Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) registerConnection(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Int("total_connections", len(h.connections)).
		Msg("connection registered")
}

func (h *Hub) unregisterConnection(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[c]; exists {
		delete(h.connections, c)
		close(c.Send)

		log.Info().
			Str("connection_id", c.ID).
			Dur("connected_for", time.Since(c.ConnectedAt)).
			Msg("connection unregistered")
	}
}

func (h *Hub) handleBroadcast(message BroadcastMessage) {
	// Sends happen under the read lock so no Send channel closes mid-broadcast
	h.mu.RLock()
	var slow []*Connection
	delivered := 0
	for c := range h.connections {
		if c.ID == message.From {
			continue
		}
		select {
		case c.Send <- message.Data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		h.unregisterConnection(c)
		c.Conn.Close()
	}

	log.Debug().
		Str("from", message.From).
		Int("connections", delivered).
		Msg("frame relayed")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*Connection
	for c := range h.connections {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregisterConnection(c)
	}
}

// GetConnectionStats returns statistics about active connections
func (h *Hub) GetConnectionStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": len(h.connections),
	}
}

// authenticate reads the password frame and answers with the next runner's
// password. Failure closes the connection.
func (c *Connection) authenticate() bool {
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.AuthTimeout))
	_, password, err := c.Conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("no password received")
		return false
	}

	next, err := c.hub.auth.Check(string(password))
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("authentication failed")
		return false
	}

	c.Send <- []byte(command.Encode(command.ControlPassword, next))
	c.hub.registerConnection(c)
	go c.writePump()

	log.Info().Str("connection_id", c.ID).Msg("client authenticated")
	return true
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump authenticates the client, then relays every frame it sends
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	if !c.authenticate() {
		return
	}

	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.hub.Broadcast(c.ID, message)
		if c.hub.forwarder != nil {
			c.hub.forwarder.Forward(message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
