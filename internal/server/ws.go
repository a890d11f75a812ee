package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/app"
	"github.com/ayusman/theremin/internal/logging"
)

const (
	writeWait     = 2 * time.Second
	clientBacklog = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHub pushes the instrument status to websocket clients after every tick.
// Publish never blocks: a client that falls behind misses updates.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
	logger  *zap.Logger
}

// NewLiveHub creates an empty hub.
func NewLiveHub(logger *zap.Logger) *LiveHub {
	return &LiveHub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logging.OrNop(logger),
	}
}

// Clients returns the number of connected clients.
func (h *LiveHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends st to every connected client. It is meant to be registered
// with App.OnStatus.
func (h *LiveHub) Publish(st app.Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(st)
	if err != nil {
		h.logger.Warn("encode live status", zap.Error(err))
		return
	}
	for _, out := range h.clients {
		select {
		case out <- msg:
		default:
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, out := range h.clients {
		close(out)
		delete(h.clients, conn)
	}
}

// ServeHTTP handles WebSocket upgrade requests on /api/live.
func (h *LiveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	out := make(chan []byte, clientBacklog)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = out
	h.mu.Unlock()

	defer h.remove(conn)

	go h.write(conn, out)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *LiveHub) write(conn *websocket.Conn, out <-chan []byte) {
	for msg := range out {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	conn.Close()
}

func (h *LiveHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.clients[conn]; ok {
		close(out)
		delete(h.clients, conn)
	}
}
