package realtime

import (
	"sync"

	"uploadflow/internal/upload"
)

// subscriberBuffer bounds each listener's queue; a slow listener drops
// events rather than blocking the uploader.
const subscriberBuffer = 16

// Hub fans events out to every listener subscribed to a user's channel.
// It implements upload.Publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan upload.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan upload.Event]struct{})}
}

// Subscribe registers a listener for a user's events. The returned cancel
// func must be called when the listener goes away.
func (h *Hub) Subscribe(userID string) (<-chan upload.Event, func()) {
	ch := make(chan upload.Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan upload.Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if listeners, ok := h.subs[userID]; ok {
			delete(listeners, ch)
			if len(listeners) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to all of the user's listeners without
// blocking. Events to a full queue are dropped; progress is advisory and
// the persisted session stays authoritative.
func (h *Hub) Publish(userID string, event upload.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports active listeners for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
