package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// Event is one dashboard notification pushed over the websocket.
type Event struct {
	Type string      `json:"type"` // "import", "delete", "reset"
	Date string      `json:"date,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// EventHub fans events out to connected dashboard clients. Clients only
// listen; anything they send is drained and ignored.
type EventHub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	// Per connection, a write lock: gorilla/websocket allows at most one
	// concurrent writer, and handler goroutines broadcast concurrently.
	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewEventHub creates an EventHub.
func NewEventHub(log *logger.Logger) *EventHub {
	return &EventHub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from a different origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("clients", count).Debug("Websocket client connected")

	// Read pump: we never expect messages, but reading is how we learn
	// about a closed connection.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends one event to every connected client. Clients that fail
// to receive are dropped.
func (h *EventHub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode event")
		return
	}

	type client struct {
		conn *websocket.Conn
		wmu  *sync.Mutex
	}
	h.mu.Lock()
	snapshot := make([]client, 0, len(h.clients))
	for conn, wmu := range h.clients {
		snapshot = append(snapshot, client{conn, wmu})
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		c.wmu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.wmu.Unlock()
		if err != nil {
			h.drop(c.conn)
		}
	}
}

// Close disconnects all clients.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *EventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
