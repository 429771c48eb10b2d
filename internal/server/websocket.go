package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ActivityEvent is one entry on the activity feed, broadcast whenever a
// memory is stored.
type ActivityEvent struct {
	Type       string `json:"type"`
	MemoryID   string `json:"memory_id"`
	DoppleID   string `json:"dopple_id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	Importance int    `json:"importance"`
	Embedded   bool   `json:"embedded"`
	Timestamp  string `json:"timestamp"`
}

// Hub manages WebSocket connections and broadcasts activity events.
type Hub struct {
	clients    map[hubClient]bool
	broadcast  chan interface{}
	register   chan hubClient
	unregister chan hubClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// hubClient allows both real connections and test doubles.
type hubClient interface {
	sendChannel() chan []byte
	closeConn()
}

// client represents one WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) sendChannel() chan []byte { return c.send }

func (c *client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// NewHub creates an activity hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[hubClient]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan hubClient),
		unregister: make(chan hubClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes register, unregister, and broadcast events until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: activity client connected (total: %d)", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: activity client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("server: failed to marshal activity event: %v", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.sendChannel() <- data:
				default:
					// Slow consumer, drop the connection.
					close(c.sendChannel())
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts down the hub and closes every connection.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for c := range h.clients {
		close(c.sendChannel())
		c.closeConn()
	}
	h.clients = make(map[hubClient]bool)
	h.mu.Unlock()
}

// add joins a client to the feed. A no-op once the hub is stopped, since
// nothing drains the register channel after Run returns.
func (h *Hub) add(c hubClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// drop removes a client from the feed. Safe to call after Stop; the pumps
// rely on this when they unwind during shutdown.
func (h *Hub) drop(c hubClient) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Broadcast queues an event for every connected client. Drops the event when
// the queue is full rather than blocking the caller.
func (h *Hub) Broadcast(event interface{}) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("server: activity broadcast queue full, dropping event")
	}
}

// ServeHTTP upgrades the request to a WebSocket and joins it to the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
