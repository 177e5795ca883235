package core

import "sync"

const defaultQueueSize = 32

// Bus fans out envelopes to every subscribed connection. Subscribers filter
// envelopes themselves; the bus only guarantees that publishing never blocks
// on a slow consumer.
type Bus struct {
	mu       sync.RWMutex
	capacity int
	subs     map[string]chan Envelope // keyed by connection address
}

// NewBus constructs a bus whose subscriber queues hold capacity envelopes.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultQueueSize
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[string]chan Envelope),
	}
}

// Subscribe registers addr and returns its delivery queue. Envelopes
// published before the subscription are never seen by the new subscriber.
func (b *Bus) Subscribe(addr string) <-chan Envelope {
	ch := make(chan Envelope, b.capacity)

	b.mu.Lock()
	b.subs[addr] = ch
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes addr from the fan-out set. The queue is left open so
// an in-flight Publish never sends on a closed channel; undelivered
// envelopes are simply dropped with it.
func (b *Bus) Unsubscribe(addr string) {
	b.mu.Lock()
	delete(b.subs, addr)
	b.mu.Unlock()
}

// Publish delivers env to every subscriber queue without blocking. When a
// queue is full, the oldest queued envelope is evicted so the newest one is
// kept; a stalled subscriber loses only its own backlog.
func (b *Bus) Publish(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- env:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- env:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
