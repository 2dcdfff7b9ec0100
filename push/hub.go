// Package push fans mailbox-change events out to the websocket
// connections of an identity.
package push

import "sync"

// Hub tracks subscriptions keyed by email address. Delivery is best
// effort: a subscriber that cannot keep up loses events rather than
// blocking the sender, which is fine because every event only means
// "refresh this view".
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers interest in an identity's events and returns the
// event channel plus a cancel function that must be called exactly once.
func (h *Hub) Subscribe(email string) (<-chan []byte, func()) {
	ch := make(chan []byte, 8)

	h.mu.Lock()
	if _, ok := h.subs[email]; !ok {
		h.subs[email] = make(map[chan []byte]struct{})
	}
	h.subs[email][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if subscribers, ok := h.subs[email]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(h.subs, email)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
}

// Broadcast delivers a payload to every subscriber of the identity.
func (h *Hub) Broadcast(email string, payload []byte) {
	if email == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[email] {
		select {
		case ch <- payload:
		default:
		}
	}
}
