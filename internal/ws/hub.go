package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client merepresentasikan satu koneksi WebSocket dari dashboard.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// events queued for WritePump
	send chan WsEvent
}

// Hub menyimpan semua client aktif dan broadcast event ke semuanya.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan WsEvent
	done       chan struct{}

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan WsEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run harus dijalankan di goroutine terpisah. Selesai saat ctx done, semua client ditutup.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// client lambat, tutup saja
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Register adds client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for every client without blocking. Events are dropped when the queue is full.
func (h *Hub) Publish(event WsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn().Str("event", event.Event).Msg("ws broadcast queue full, event dropped")
	}
}

// RealtimePublisher is what services hold instead of the Hub itself.
type RealtimePublisher interface {
	Publish(event WsEvent)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(WsEvent) {}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan WsEvent, 256),
	}
}

// WritePump drains the send channel onto the connection.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			c.hub.log.Error().Err(err).Str("event", event.Event).Msg("ws marshal failed")
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.hub.log.Debug().Err(err).Msg("ws write failed")
			c.hub.Unregister(c)
			return
		}
	}
}

// ReadPump discards inbound frames and unregisters the client once the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)

	_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.hub.log.Debug().Err(err).Msg("ws read closed")
			return
		}
	}
}
