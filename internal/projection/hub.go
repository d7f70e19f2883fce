// Package projection holds read views that are pushed to subscribers after
// every change instead of being polled.
package projection

import "sync"

// Hub fans a value out to subscribers. Each subscriber channel has a buffer of
// one and always holds the most recent value: a slow reader misses
// intermediate values but never blocks Publish.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	latest T
	has    bool
	closed bool
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a subscriber. If a value was already published the
// channel starts out holding it. The returned cancel func is idempotent.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if h.has {
		ch <- h.latest
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Publish records v as the latest value and delivers it to every subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = v
	h.has = true

	for _, ch := range h.subs {
		// drop the stale value, if any, so the newest one fits
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Latest returns the last published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

// Close closes all subscriber channels. Later Publish calls are ignored.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
