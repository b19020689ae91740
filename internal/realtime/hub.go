// Package realtime pushes timer state and notifications to a user's open
// WebSocket connections and accepts timer commands from them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"focusflow/backend/internal/protocol"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 64
)

var ErrHubClosed = errors.New("realtime hub closed")

// Controller executes timer commands received over a connection and
// supplies the state sent to a freshly connected client.
type Controller interface {
	Command(ctx context.Context, userID, action string) error
	Snapshot(ctx context.Context, userID string) (interface{}, error)
}

// Hub tracks connections per user along with the notification permission
// each user's clients have reported.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu          sync.RWMutex
	clients     map[string]map[*client]struct{}
	permissions map[string]Permission
	controller  Controller
	closed      bool
}

type client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// NewHub accepts upgrades from allowedOrigins. "*" allows any origin, and
// requests without an Origin header (non-browser clients) are always allowed.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:      logger,
		clients:     make(map[string]map[*client]struct{}),
		permissions: make(map[string]Permission),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// SetController wires the command target. It must be called before the
// first connection is served.
func (h *Hub) SetController(controller Controller) {
	h.mu.Lock()
	h.controller = controller
	h.mu.Unlock()
}

// ServeWS upgrades the request and registers the connection for userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := &client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrHubClosed
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	controller := h.controller
	h.mu.Unlock()

	h.logger.Debug("websocket connected", "user_id", userID)

	if controller != nil {
		if snapshot, err := controller.Snapshot(r.Context(), userID); err != nil {
			h.logger.Warn("load timer snapshot", "user_id", userID, "error", err)
		} else {
			c.enqueue(protocol.TypeTimerState, snapshot)
		}
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// Publish sends a message to every connection of userID without blocking.
// A client whose buffer is full misses the message. It returns the number
// of connections the message was queued for.
func (h *Hub) Publish(userID, msgType string, payload interface{}) int {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error("build websocket message", "type", msgType, "error", err)
		return 0
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode websocket message", "type", msgType, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			delivered++
		default:
			h.logger.Debug("websocket buffer full, dropping message", "user_id", userID, "type", msgType)
		}
	}
	return delivered
}

func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client and rejects further upgrades.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	h.logger.Debug("websocket disconnected", "user_id", c.userID)
}

func (h *Hub) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ParseClientMessage(raw)
	if err != nil {
		c.sendError(protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypePermission:
		var payload protocol.PermissionPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		permission := PermissionDenied
		if payload.Granted {
			permission = PermissionGranted
		}
		h.setPermission(c.userID, permission)

	case protocol.TypeTimerCommand:
		var payload protocol.TimerCommandPayload
		_ = json.Unmarshal(msg.Payload, &payload)

		h.mu.RLock()
		controller := h.controller
		h.mu.RUnlock()
		if controller == nil {
			c.sendError(protocol.ErrCommandFailed, "timer commands are unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
		defer cancel()
		if err := controller.Command(ctx, c.userID, payload.Action); err != nil {
			c.sendError(protocol.ErrCommandFailed, err.Error())
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read", "user_id", c.userID, "error", err)
			}
			return
		}
		c.hub.handleMessage(c, message)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue is only used before the pumps start, when send cannot be closed.
func (c *client) enqueue(msgType string, payload interface{}) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) sendError(code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
