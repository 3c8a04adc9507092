package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	clientBuffer = 16
)

type MessageType string

const (
	MessageFrame  MessageType = "frame"
	MessageStatus MessageType = "status"
)

// Message is the envelope pushed to websocket clients.
type Message struct {
	Type   MessageType         `json:"type"`
	Frame  *domain.Frame       `json:"frame,omitempty"`
	Status *domain.StatusEvent `json:"status,omitempty"`
}

// Hub broadcasts frames and status events to browser clients.
// It implements both domain.RenderSink and domain.StatusSink.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*client]bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// client is written only by its own writePump goroutine.
type client struct {
	conn *websocket.Conn
	send chan Message
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *Hub) Render(ctx context.Context, f domain.Frame) error {
	h.broadcast(Message{Type: MessageFrame, Frame: &f})
	return nil
}

func (h *Hub) Report(ctx context.Context, evt domain.StatusEvent) {
	h.broadcast(Message{Type: MessageStatus, Status: &evt})
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast never blocks. A client whose buffer is full is dropped.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("WebSocket client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		if err := write(c.conn, msg); err != nil {
			h.logger.Warn("WebSocket write error", zap.Error(err))
			c.conn.Close()
			return
		}
	}
}

func write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// Serve upgrades the request and registers the client. A non-nil initial
// message is sent before the client sees any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial *Message) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	if initial != nil {
		if err := write(conn, *initial); err != nil {
			return
		}
	}

	c := &client{conn: conn, send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	go h.writePump(c)

	h.logger.Info("WebSocket client connected", zap.Int("clients", total))

	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Info("WebSocket client disconnected", zap.Int("clients", total))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		h.removeLocked(c)
	}
}
