// Package alert relays bedside alerts to every connected viewer over
// websockets. Delivery is best effort: nothing is persisted or acknowledged,
// and a viewer whose buffer is full misses the event.
package alert

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names understood by the relay.
const (
	EventRedLight  = "red-light-detected"
	EventNeedsHelp = "patient-needs-help"
)

const defaultClientBuffer = 64

// Event is the message written to viewers.
type Event struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client is one connected viewer.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
	now     func() time.Time
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes the client and closes its Send channel. Calling it twice
// is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Broadcast sends the named event with an optional payload to every client
// and returns how many buffers accepted it.
func (h *Hub) Broadcast(name string, data interface{}) int {
	event := Event{Event: name, Timestamp: h.now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.logger.Error("failed to encode alert payload", zap.String("event", name), zap.Error(err))
			return 0
		}
		event.Data = raw
	}

	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode alert", zap.String("event", name), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		select {
		case client.Send <- msg:
			delivered++
		default:
			h.logger.Debug("alert dropped for slow client", zap.String("client_id", client.ID), zap.String("event", name))
		}
	}
	return delivered
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
