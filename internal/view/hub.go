package view

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 8

// Hub fans views out to subscribers and remembers the latest one.
// A subscriber that falls behind misses views rather than blocking Publish.
type Hub struct {
	mu      sync.RWMutex
	latest  View
	subs    map[chan View]struct{}
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		latest: View{State: StateWaiting},
		subs:   make(map[chan View]struct{}),
	}
}

// Publish records v as the latest view and delivers it to every subscriber
func (h *Hub) Publish(v View) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = v
	for ch := range h.subs {
		select {
		case ch <- v:
		default:
			h.dropped.Add(1)
		}
	}
}

// Latest returns the most recently published view
func (h *Hub) Latest() View {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Subscribe returns a channel primed with the latest view. The cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan View, func()) {
	ch := make(chan View, subscriberBuffer)

	h.mu.Lock()
	ch <- h.latest
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Subscribers returns the number of active subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
