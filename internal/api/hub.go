package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stormdex/internal/metrics"
)

const (
	writeWait = 5 * time.Second
	// sendQueue is how many events a client may fall behind before it is dropped.
	sendQueue = 16
)

// Event is the envelope pushed to websocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected websocket client. Each client has
// its own writer goroutine, so Broadcast never waits on a socket.
type Hub struct {
	clients  map[*client]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		metrics:  m,
		logger:   logger,
	}
}

// Broadcast queues one event for all clients. A client whose queue is full
// is disconnected.
func (h *Hub) Broadcast(eventType string, data any) {
	msg, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("marshal websocket event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("websocket client too slow, dropping", zap.String("type", eventType))
			h.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades the request and registers the connection. initial, when
// non-nil, produces events delivered to the new client ahead of any broadcast.
func (h *Hub) Handler(initial func() []Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		var first [][]byte
		if initial != nil {
			for _, ev := range initial() {
				msg, err := json.Marshal(ev)
				if err != nil {
					h.logger.Error("marshal websocket event", zap.String("type", ev.Type), zap.Error(err))
					continue
				}
				first = append(first, msg)
			}
		}
		c := &client{conn: conn, send: make(chan []byte, sendQueue+len(first))}
		for _, msg := range first {
			c.send <- msg
		}

		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.metrics.AddWebsocketClients(1)
		h.mu.Unlock()

		go h.writeLoop(c)
		go h.readLoop(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			h.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames and unregisters the client once the peer goes away.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.metrics.AddWebsocketClients(-1)
	close(c.send)
	c.conn.Close()
}
