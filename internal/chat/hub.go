// Package chat serves the per-client websocket channel.
package chat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/supportdesk/internal/metrics"
)

// conn is one live client channel.
type conn struct {
	id string
	ws *websocket.Conn
}

// Hub tracks the live channel of each client. A client has at most one
// channel; registering a new one closes the previous.
type Hub struct {
	mu     sync.RWMutex
	active map[string]*conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]*conn)}
}

// Register adds a channel for clientID, replacing any existing one.
func (h *Hub) Register(clientID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[clientID]; ok && existing != c {
		_ = existing.ws.Close(websocket.StatusNormalClosure, "session replaced")
		slog.Info("Chat channel replaced", "client_id", clientID, "connection_id", existing.id)
	} else {
		metrics.ConnectionOpened()
	}
	h.active[clientID] = c
	slog.Info("Chat channel registered", "client_id", clientID, "connection_id", c.id)
}

// Unregister removes the channel if it is still the current one.
func (h *Hub) Unregister(clientID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[clientID]; ok && current == c {
		delete(h.active, clientID)
		metrics.ConnectionClosed()
		slog.Info("Chat channel unregistered", "client_id", clientID, "connection_id", c.id)
	}
}

// Close terminates the client's channel, if any.
func (h *Hub) Close(clientID string, reason string) {
	h.mu.RLock()
	c, ok := h.active[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = c.ws.Close(websocket.StatusNormalClosure, reason)
	slog.Info("Chat channel closed", "client_id", clientID, "reason", reason)
}

// Count returns the number of live channels.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}
