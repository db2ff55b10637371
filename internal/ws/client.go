package ws

import (
	"net/http"
	"time"

	"github.com/cocsc-web/api/internal/auth"
	"github.com/cocsc-web/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // admin feed is gated by JWT, order feed is public
	},
}

// Client represents a single WebSocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	topic  string
	send   chan []byte
	logger *zap.Logger
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// Clients never send anything meaningful; this only detects disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket error", zap.String("topic", c.topic), zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades WebSocket requests and attaches them to hub rooms.
type Handler struct {
	hub       *Hub
	jwtSecret string
	logger    *zap.Logger
}

func NewHandler(hub *Hub, jwtSecret string, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret, logger: logger}
}

// RegisterRoutes mounts the feeds.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ServeOrders)
	r.Get("/orders/{id}", h.ServeOrder)
}

// ServeOrders is the admin feed.
// Endpoint: WS /ws/orders?token=JWT
func (h *Handler) ServeOrders(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Role != enum.AdminRole {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.serve(w, r, TopicOrders)
}

// ServeOrder streams status changes of one order to its receipt page.
// Endpoint: WS /ws/orders/{id}
func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	h.serve(w, r, OrderTopic(id))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		topic:  topic,
		send:   make(chan []byte, 256),
		logger: h.logger,
	}
	client.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
