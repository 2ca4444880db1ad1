package cartsync

import (
	"sync"
)

const subscriberBuffer = 16

type subscriber struct {
	ch   chan string
	done chan struct{}
}

// Bus fans cart-changed signals out to subscribers. Publishers never wait:
// a subscriber whose buffer is full misses the signal and is expected to
// pull current state itself.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// OnCartChanged registers cb to be called with the session id of every cart
// mutation. Callbacks run on a dedicated goroutine per subscriber, in signal
// order. The returned func unsubscribes and is safe to call more than once.
func (b *Bus) OnCartChanged(cb func(sessionID string)) (unsubscribe func()) {
	sub := &subscriber{
		ch:   make(chan string, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case sessionID := <-sub.ch:
				cb(sessionID)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.done)
			}
			b.mu.Unlock()
		})
	}
}

// NotifyCartChanged signals every subscriber without blocking.
func (b *Bus) NotifyCartChanged(sessionID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- sessionID:
		default:
		}
	}
}

// Subscribers reports the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Later subscriptions are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.done)
		delete(b.subs, id)
	}
}
