package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"uart-test/logger"
	"uart-test/session"
)

const (
	clientBacklog = 256
	writeWait     = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts session events to read-only WebSocket monitors
type Hub struct {
	status func() session.StatusInfo

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub; status supplies the snapshot sent on connect
func NewHub(status func() session.StatusInfo) *Hub {
	return &Hub{
		status:  status,
		clients: make(map[*client]struct{}),
	}
}

// Observe queues ev for every client. Clients that cannot keep up are dropped.
func (h *Hub) Observe(ev session.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Info("Monitor %s too slow, dropping", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

// ClientCount reports connected monitors
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBacklog)}

	// Status first, so the snapshot precedes any event
	if h.status != nil {
		if msg, err := json.Marshal(session.StatusEvent(h.status())); err == nil {
			c.send <- msg
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Info("Monitor connected: %s", conn.RemoteAddr())

	go h.writePump(c)

	// Monitors are read-only; reading only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	logger.Info("Monitor disconnected: %s", conn.RemoteAddr())
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("Monitor write failed: %v", err)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Close disconnects every monitor
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
