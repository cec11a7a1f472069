// internal/server/broadcast.go
package server

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is the envelope every monitor message travels in
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected monitor clients and fans messages out to them
type Hub struct {
	clients map[string]*client
	mutex   sync.RWMutex
	logger  *zap.Logger
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger.With(zap.String("component", "hub")),
	}
}

// register adds a client to the hub
func (h *Hub) register(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c.id] = c
}

// unregister removes a client and closes its send channel
func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// ClientCount returns the number of connected monitor clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every connected client. Slow clients
// have the message dropped rather than stalling the broadcast.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(&Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", c.id),
			)
		}
	}
}
