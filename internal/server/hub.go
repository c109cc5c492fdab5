package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parking-sim/internal/logging"
	"parking-sim/internal/sim"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans runner updates out to websocket clients. A client that cannot
// keep up is dropped rather than slowing the tick loop.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			logging.Debug(ctx, "websocket client connected", "client_id", c.id, "clients", len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				logging.Debug(ctx, "websocket client disconnected", "client_id", c.id, "clients", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					logging.Warn(ctx, "websocket client dropped", "client_id", c.id)
				}
			}
		}
	}
}

// Publish queues an update for every client. It never blocks; when the
// broadcast queue is full the update is skipped.
func (h *Hub) Publish(update sim.Update) {
	msg, err := json.Marshal(update)
	if err != nil {
		logging.Warn(context.Background(), "update not published", "tick", update.Stats.Tick, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ServeWS upgrades the request and streams updates, starting with current.
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, current sim.Update) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, sendBuffer)}
	if msg, err := json.Marshal(current); err == nil {
		c.send <- msg
	}

	select {
	case h.register <- c:
	case <-ctx.Done():
		conn.Close()
		return
	}

	go c.writer()
	go c.reader(ctx, h)
}

// reader discards client messages; it exists to process control frames and
// notice when the peer goes away.
func (c *client) reader(ctx context.Context, h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
