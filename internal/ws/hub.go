package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans build-log payloads out to subscribers keyed by endpoint ID.
type Hub struct {
	mu      sync.Mutex
	streams map[string]map[Subscriber]struct{}
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[string]map[Subscriber]struct{})}
}

// Register adds a client to an endpoint stream.
func (h *Hub) Register(endpointID string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[endpointID]; !ok {
		h.streams[endpointID] = make(map[Subscriber]struct{})
	}
	h.streams[endpointID][client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(endpointID string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.streams[endpointID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.streams, endpointID)
	}
}

// Broadcast sends payload to every subscriber of the endpoint. Clients whose
// send fails are dropped.
func (h *Hub) Broadcast(endpointID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.streams[endpointID]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.streams, endpointID)
	}
}
