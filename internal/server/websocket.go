// internal/server/websocket.go
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// client is one WebSocket monitor connection
type client struct {
	id         string
	connection *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// handleWebSocket upgrades a monitor connection and starts its pumps
func (s *Server) handleWebSocket(c *gin.Context) {
	connection, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	monitorClient := &client{
		id:         uuid.New().String(),
		connection: connection,
		send:       make(chan []byte, 256),
		remoteAddr: c.Request.RemoteAddr,
	}

	s.hub.register(monitorClient)
	s.logger.Info("Monitor client connected",
		zap.String("client_id", monitorClient.id),
		zap.String("remote_addr", monitorClient.remoteAddr),
	)

	go s.clientRead(monitorClient)
	go s.clientWrite(monitorClient)
}

// clientRead drains incoming messages. Monitors are read-mostly; the
// only client message acted on is the application-level ping.
func (s *Server) clientRead(monitorClient *client) {
	defer func() {
		s.hub.unregister(monitorClient)
		monitorClient.connection.Close()
	}()

	monitorClient.connection.SetReadDeadline(time.Now().Add(pongWait))
	monitorClient.connection.SetPongHandler(func(string) error {
		monitorClient.connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := monitorClient.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", monitorClient.id),
				)
			}
			return
		}

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil {
			s.logger.Warn("Failed to parse client message",
				zap.Error(err),
				zap.String("client_id", monitorClient.id),
			)
			continue
		}

		if message.Type == "ping" {
			s.sendToClient(monitorClient, &Message{Type: "pong", Timestamp: time.Now()})
		}
	}
}

// clientWrite pushes broadcast messages and keepalive pings
func (s *Server) clientWrite(monitorClient *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		monitorClient.connection.Close()
	}()

	for {
		select {
		case payload, ok := <-monitorClient.send:
			monitorClient.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				monitorClient.connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := monitorClient.connection.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", monitorClient.id),
				)
				return
			}

		case <-ticker.C:
			monitorClient.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := monitorClient.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendToClient queues one message for a single client
func (s *Server) sendToClient(monitorClient *client, message *Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case monitorClient.send <- payload:
	default:
		s.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", monitorClient.id),
		)
	}
}

// newUpgrader builds the WebSocket upgrader for the monitor endpoint
func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}
