package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/telemetry"
)

// general is the registry key for connections not scoped to a category.
const general int64 = 0

type Client struct {
	ID   string
	Send chan []byte

	category int64
}

// Category returns the category the client listens to, or zero for the
// general stream.
func (c *Client) Category() int64 {
	return c.category
}

// Hub keeps live connections keyed by category. Every category event is
// mirrored to general subscribers.
type Hub struct {
	mu      sync.RWMutex
	streams map[int64]map[string]*Client
}

type SubscribeMessage struct {
	CategoryID *int64 `json:"category_id"`
}

func New() *Hub {
	return &Hub{streams: map[int64]map[string]*Client{general: {}}}
}

// Register adds client to the general stream. A client that is already
// registered is moved back to general.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
	client.category = general
	h.streams[general][client.ID] = client
}

// Unregister removes client from whichever stream it occupies and closes
// its send channel. Calling it twice is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removeLocked(client) {
		close(client.Send)
	}
}

// Subscribe moves client to the given category. Zero moves it back to the
// general stream.
func (h *Hub) Subscribe(client *Client, categoryID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.removeLocked(client) {
		return
	}
	if categoryID < 0 {
		categoryID = general
	}
	if _, ok := h.streams[categoryID]; !ok {
		h.streams[categoryID] = map[string]*Client{}
	}
	client.category = categoryID
	h.streams[categoryID][client.ID] = client
}

// removeLocked drops client from its current stream and reports whether it
// was there.
func (h *Hub) removeLocked(client *Client) bool {
	members, ok := h.streams[client.category]
	if !ok {
		return false
	}
	if _, ok := members[client.ID]; !ok {
		return false
	}
	delete(members, client.ID)
	if client.category != general && len(members) == 0 {
		delete(h.streams, client.category)
	}
	return true
}

// Publish encodes event and delivers it to local connections.
func (h *Hub) Publish(_ context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var categoryID int64
	if event.CategoryID != nil {
		categoryID = *event.CategoryID
	}
	h.Broadcast(payload, categoryID)
	return nil
}

// Broadcast sends an encoded event to the category's subscribers and to the
// general stream. A zero category reaches general subscribers only. A full
// connection buffer drops the message for that connection alone.
func (h *Hub) Broadcast(payload []byte, categoryID int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if categoryID != general {
		h.deliver(h.streams[categoryID], payload)
	}
	h.deliver(h.streams[general], payload)
}

func (h *Hub) deliver(members map[string]*Client, payload []byte) {
	for _, client := range members {
		select {
		case client.Send <- payload:
		default:
			telemetry.DroppedMessages.Inc()
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// Count returns the number of connections on a stream.
func (h *Hub) Count(categoryID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[categoryID])
}

// ParseSubscribe reads a scoping message. A missing or null category_id
// selects the general stream.
func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return SubscribeMessage{}, false
	}
	var msg SubscribeMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.CategoryID != nil && *msg.CategoryID < 0 {
		return SubscribeMessage{}, false
	}
	return msg, true
}

// Scope returns the category selected by msg, zero meaning general.
func (m SubscribeMessage) Scope() int64 {
	if m.CategoryID == nil {
		return general
	}
	return *m.CategoryID
}
