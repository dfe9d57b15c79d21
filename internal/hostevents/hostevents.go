// Package hostevents implements the host event channel of spec.md §6: a
// hub broadcasting {type:"resize"}, {type:"success"}, and {type:"error"}
// events to every connected browser client; there is no separate HMR
// update event type. Grounded on templar/internal/websocket.WebSocketManager's hub
// pattern (register/unregister/broadcast channels, one goroutine owning
// the client map), swapped from gorilla/websocket onto coder/websocket.
package hostevents

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/conneroisu/sandboxgraph/internal/logging"
)

// EventType is the event discriminator of spec.md §6.
type EventType string

const (
	EventResize  EventType = "resize"
	EventSuccess EventType = "success"
	EventError   EventType = "error"
)

// Event is the payload broadcast to every connected client. Height is set
// only for EventResize; Message/Module/FileName are set only for
// EventError, carrying the thrown error augmented with the failing
// module's identity per spec.md §6/§7.
type Event struct {
	Type     EventType `json:"type"`
	Height   int       `json:"height,omitempty"`
	Message  string    `json:"message,omitempty"`
	Module   string    `json:"module,omitempty"`
	FileName string    `json:"fileName,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the set of connected host-document clients and broadcasts
// events to all of them, following WebSocketManager's single-goroutine
// hub for connection lifecycle.
type Hub struct {
	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	ctx    context.Context
	cancel context.CancelFunc

	logger logging.Logger
}

// NewHub creates a Hub and starts its connection-management goroutine.
func NewHub(logger logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client, 32),
		unregister: make(chan *client, 32),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = struct{}{}
			h.clientsMu.Unlock()

		case c := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.clientsMu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// slow consumer; drop rather than block the hub
				}
			}
			h.clientsMu.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast sends an event to every connected client, mirroring
// WebSocketManager.BroadcastMessage.
func (h *Hub) Broadcast(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	}
	return nil
}

// ServeHTTP upgrades the request to a WebSocket and pumps broadcast
// messages to the new client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Warn(r.Context(), err, "hostevents: websocket upgrade failed")
		}
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "shutting down")
		return
	}

	h.writePump(c)
}

func (h *Hub) writePump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(h.ctx, websocket.MessageText, message); err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Shutdown stops the hub's goroutine and closes every connection.
func (h *Hub) Shutdown() {
	h.cancel()
}
