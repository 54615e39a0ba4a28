package events

import (
	"log/slog"
	"sync"
)

// DefaultBufferSize is the default channel buffer size for subscribers.
const DefaultBufferSize = 100

// Router fans emitted events out to subscriber channels. Delivery is
// non-blocking: a subscriber that stops draining loses events rather than
// stalling the event-handling path.
type Router struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	closed      bool
}

// NewRouter creates a router with the given default subscriber buffer size.
// Non-positive sizes fall back to DefaultBufferSize.
func NewRouter(bufferSize int) *Router {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Router{
		subscribers: make(map[int]chan Event),
		bufferSize:  bufferSize,
	}
}

// Emit publishes an event to all subscribers. If a subscriber's channel is
// full the event is dropped for that subscriber and a warning is logged.
// Safe to call concurrently and after Close (no-op).
func (r *Router) Emit(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped: subscriber channel full",
				"event_type", event.Type(),
				"source", event.Source(),
			)
		}
	}
}

// Subscribe registers a subscriber with the default buffer size and returns
// its channel plus a cancel function that unsubscribes and closes it.
func (r *Router) Subscribe() (<-chan Event, func()) {
	return r.SubscribeBuffered(r.bufferSize)
}

// SubscribeBuffered registers a subscriber with an explicit buffer size.
// The channel is closed when the router closes or the cancel function runs.
func (r *Router) SubscribeBuffered(size int) (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := r.nextID
	r.nextID++
	ch := make(chan Event, size)
	r.subscribers[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close closes all subscriber channels and marks the router closed.
// Subsequent Emits are no-ops; subsequent Subscribes return closed
// channels. Safe to call multiple times.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
}
