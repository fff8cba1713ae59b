package events

import (
	"sync"
	"sync/atomic"

	"lockdrop/core/types"
)

// DefaultSubscriberBuffer is the channel capacity used when Subscribe is
// called with a non-positive buffer.
const DefaultSubscriberBuffer = 64

// Hub fans committed events out to live subscribers. A subscriber whose
// buffer is full misses the event; Emit never blocks.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan *types.Event
	dropped atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan *types.Event)}
}

// Emit implements the Emitter interface. Only payload-carrying events are
// forwarded and each subscriber receives its own copy.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- payload.Event().Clone():
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan *types.Event, buffer)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber was
// full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
