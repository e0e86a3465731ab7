package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Event is one engine event pushed to websocket subscribers.
type Event struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Hub fans engine events out to connected websocket clients. Slow
// clients are disconnected rather than allowed to back-pressure the
// engine.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*hubClient]bool

	broadcast chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:    logger,
		clients:   make(map[*hubClient]bool),
		broadcast: make(chan Event, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run processes broadcasts until Stop is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case event := <-h.broadcast:
				h.deliver(event)
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

// Stop disconnects all clients and halts the broadcast loop.
func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close(websocket.StatusNormalClosure, "server shutting down")
	}
	h.clients = make(map[*hubClient]bool)
	h.mu.Unlock()
}

// Broadcast queues an event for delivery. Drops when the queue is
// full so callers never block.
func (h *Hub) Broadcast(eventType string, payload any) {
	event := Event{Type: eventType, At: time.Now().UTC(), Payload: payload}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event broadcast queue full, dropping event", "type", eventType)
	}
}

func (h *Hub) deliver(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "total", count)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) writePump(client *hubClient) {
	defer h.drop(client)
	for message := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnects.
func (h *Hub) readPump(client *hubClient) {
	defer h.drop(client)
	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) drop(client *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close(websocket.StatusNormalClosure, "")
}
