// Package pubsub is a small in-process publish/subscribe hub.
//
// Deliveries are queued and handed to subscribers one at a time in publish
// order. A subscriber may publish or (un)subscribe from inside its callback;
// the nested publication is queued behind the current one instead of being
// delivered re-entrantly. Whichever goroutine finds the hub idle drains the
// queue, so a Publish from a single goroutine has been fully delivered by the
// time it returns.
package pubsub

import "sync"

type delivery[T any] struct {
	value  T
	target uint64
}

// Hub fans values of type T out to subscribers. The zero value is ready to use.
type Hub[T any] struct {
	mu       sync.Mutex
	subs     map[uint64]func(T)
	order    []uint64
	nextID   uint64
	queue    []delivery[T]
	draining bool
	closed   bool
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	id := h.add(fn)
	return h.remover(id)
}

// SubscribeWith registers fn and queues initial for fn alone, ahead of any
// later publication.
func (h *Hub[T]) SubscribeWith(fn func(T), initial T) (unsubscribe func()) {
	id := h.add(fn)
	if id != 0 {
		h.enqueue(delivery[T]{value: initial, target: id})
		h.drain()
	}
	return h.remover(id)
}

// Publish queues v for every current subscriber.
func (h *Hub[T]) Publish(v T) {
	h.enqueue(delivery[T]{value: v})
	h.drain()
}

// Len reports the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers and pending deliveries. Later calls are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = nil
	h.order = nil
	h.queue = nil
}

func (h *Hub[T]) add(fn func(T)) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	if h.subs == nil {
		h.subs = make(map[uint64]func(T))
	}
	h.nextID++
	h.subs[h.nextID] = fn
	h.order = append(h.order, h.nextID)
	return h.nextID
}

func (h *Hub[T]) remover(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; !ok {
				return
			}
			delete(h.subs, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (h *Hub[T]) enqueue(d delivery[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.queue = append(h.queue, d)
	}
}

// drain delivers queued values until the queue is empty. Only one goroutine
// drains at a time; others return immediately and leave their values queued.
func (h *Hub[T]) drain() {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return
	}
	h.draining = true

	for len(h.queue) > 0 {
		d := h.queue[0]
		h.queue = h.queue[1:]

		var targets []uint64
		if d.target != 0 {
			targets = []uint64{d.target}
		} else {
			targets = append(targets, h.order...)
		}

		for _, id := range targets {
			fn, ok := h.subs[id]
			if !ok {
				continue
			}
			h.mu.Unlock()
			fn(d.value)
			h.mu.Lock()
		}
	}

	h.draining = false
	h.mu.Unlock()
}
