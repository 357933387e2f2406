package ws

import (
	"chat-presence/contract"
	"chat-presence/domain/event"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var _ contract.Broadcaster = (*Hub)(nil)

// Hub tracks live connections and fans outbound events out to them.
type Hub struct {
	log   *slog.Logger
	mu    sync.RWMutex
	conns map[string]*Connection // connection id -> connection
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, conns: make(map[string]*Connection)}
}

// Attach registers conn and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	conn.Start()
}

func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	delete(h.conns, conn.ID)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast encodes e once and sends it to every live connection.
func (h *Hub) Broadcast(e event.Outbound) {
	payload, err := event.Encode(e)
	if err != nil {
		h.log.Error("Failed to encode event", "event", e.EventName(), "error", err)
		return
	}

	h.mu.RLock()
	conns := lo.Values(h.conns)
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			h.log.Debug("Event dropped for connection", "connection_id", conn.ID, "event", e.EventName(), "error", err)
		}
	}
}

// SendTo delivers e to a single connection and reports whether it was queued.
func (h *Hub) SendTo(connectionID string, e event.Outbound) bool {
	h.mu.RLock()
	conn, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	payload, err := event.Encode(e)
	if err != nil {
		h.log.Error("Failed to encode event", "event", e.EventName(), "error", err)
		return false
	}
	return conn.Send(payload) == nil
}

// Close disconnects every connection, used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := lo.Values(h.conns)
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutting down")
	}
}
