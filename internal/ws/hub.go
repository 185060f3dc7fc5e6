package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// client wraps one connection with a write lock, since gorilla
// connections tolerate only one concurrent writer.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks one WebSocket connection per client id. Workers push
// session events through Send; a client that is not connected simply
// misses the event, processing never blocks on delivery.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register binds conn to clientID, displacing any previous connection
// for the same id.
func (h *Hub) Register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	old := h.clients[clientID]
	h.clients[clientID] = &client{conn: conn}
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	log.Printf("[WS] client %s connected", clientID)
}

// Unregister drops the connection for clientID, but only if conn is
// still the registered one, so a reconnect is not torn down by the
// old connection's cleanup.
func (h *Hub) Unregister(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[clientID]; ok && c.conn == conn {
		delete(h.clients, clientID)
		log.Printf("[WS] client %s disconnected", clientID)
	}
	h.mu.Unlock()
}

// IsConnected reports whether clientID currently has a connection.
func (h *Hub) IsConnected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Send marshals msg as JSON and delivers it to clientID. A write
// failure disconnects the client; send errors are otherwise silent
// because event delivery is best-effort.
func (h *Hub) Send(clientID string, msg any) {
	h.mu.RLock()
	c := h.clients[clientID]
	h.mu.RUnlock()
	if c == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] marshal event for %s: %v", clientID, err)
		return
	}
	if err := c.write(data); err != nil {
		h.Unregister(clientID, c.conn)
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
