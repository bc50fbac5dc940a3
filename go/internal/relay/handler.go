package relay

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StatsProvider reports relay statistics for the /stats endpoint
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// WebSocketHandler serves the relay endpoints
type WebSocketHandler struct {
	hub   *Hub
	stats StatsProvider
}

// NewWebSocketHandler creates a handler that upgrades into hub and reports
// stats from provider
func NewWebSocketHandler(hub *Hub, stats StatsProvider) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, stats: stats}
}

// HandleConnection upgrades the request. The upgrader answers failed
// handshakes itself, so only logging is left here.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.UpgradeConnection(w, r); err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about the relay
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.stats.GetStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// HandleHealth reports that the relay is up
func (h *WebSocketHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RegisterRoutes registers relay routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleConnection)
	mux.HandleFunc("GET /stats", h.HandleConnectionStats)
	mux.HandleFunc("GET /health", h.HandleHealth)
}
