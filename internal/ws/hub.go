package ws

import (
	"context"
	"sync"
)

// Hub tracks the open chat views.
type Hub struct {
	clients map[*Client]ConnInfo
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]ConnInfo)}
}

// Add registers a client.
func (h *Hub) Add(c *Client, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = info
}

// Remove unregisters a client.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Count is the number of open views.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountByGroup counts open views per selected group.
func (h *Hub) CountByGroup() map[string]int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range clients {
		if g := c.GroupID(); g != "" {
			counts[g]++
		}
	}
	return counts
}

// CloseAll disconnects every client, releasing their subscriptions.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) publishWSError(c *Client, err error) {
	h.mu.RLock()
	info, ok := h.clients[c]
	h.mu.RUnlock()
	if !ok {
		return
	}
	publishWSEvent(context.Background(), info, c.GroupID(), "ws_error", err.Error())
}
