package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 4096
	readDeadline = 60 * time.Second
)

// Handler upgrades session sockets at /ws/{client_id}. The client
// keeps the connection alive with {"type":"ping"} messages; anything
// else from the client is ignored.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds the socket handler. Origins outside allowedOrigins
// are refused at upgrade time; an empty list allows everything, which
// only makes sense in development.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				for _, allowed := range allowedOrigins {
					if strings.EqualFold(origin, allowed) {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeHTTP handles GET /ws/{client_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
	if clientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed for %s: %v", clientID, err)
		return
	}

	h.hub.Register(clientID, conn)
	go h.readPump(clientID, conn)
}

type inboundMessage struct {
	Type string `json:"type"`
}

// readPump consumes client messages, answering pings and refreshing
// the read deadline. Its exit is the disconnect signal.
func (h *Handler) readPump(clientID string, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(clientID, conn)
		conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readDeadline))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error for %s: %v", clientID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed client frames are ignored, not fatal.
			continue
		}
		if msg.Type == "ping" {
			h.hub.Send(clientID, map[string]string{"type": TypePong})
		}
	}
}
