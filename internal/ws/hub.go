package ws

import "sync"

// Hub routes payment events to subscribed clients by channel name.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: map[string]map[*Client]struct{}{}}
}

// Subscribe is a no-op when the client already listens on channel.
func (h *Hub) Subscribe(channel string, client *Client) {
	if !client.join(channel) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = map[*Client]struct{}{}
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
}

// UnsubscribeAll detaches client from every channel. Once it returns no
// Publish call still holds the client.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range client.joined() {
		subs, ok := h.channels[channel]
		if !ok {
			continue
		}
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Publish returns how many clients accepted the payload.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.channels[channel] {
		if c.send(payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
