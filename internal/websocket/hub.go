// Package websocket fans sync operation results and local message changes out
// to connected UI clients.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client wraps a WebSocket connection.
type Client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

func (c *Client) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub tracks the UI connections of this device.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	maxConnections int
	log            logrus.FieldLogger
}

// NewHub creates a Hub that accepts at most maxConnections clients.
func NewHub(maxConnections int, log logrus.FieldLogger) *Hub {
	if maxConnections <= 0 {
		maxConnections = 10
	}
	return &Hub{
		clients:        make(map[*Client]struct{}),
		maxConnections: maxConnections,
		log:            log.WithField("component", "websocket"),
	}
}

// Register adds a connection. Over the limit, the connection is closed and nil is returned.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= h.maxConnections {
		h.log.WithField("max", h.maxConnections).Warn("Too many connections, closing new connection")
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	h.clients[client] = struct{}{}
	return client
}

// Unregister removes a client and closes its connection.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	_ = client.conn.Close()
}

// Broadcast sends msg to every client. Clients that fail to receive it are dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(msg); err != nil {
			h.log.WithError(err).Warn("Failed to write message")
			go h.Unregister(client)
		}
	}
}

// ActiveConnections returns the number of registered clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for client := range clients {
		_ = client.conn.Close()
	}
}
