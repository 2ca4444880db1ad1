package feed

import (
	"math/rand/v2"
	"sync"
)

// Ticker hands out feed entries in random order without repeats until every
// entry has been shown, then reshuffles. Memory stays bounded by the feed
// size however long it runs.
type Ticker[T any] struct {
	mu    sync.Mutex
	items []T
	queue []int
	last  int
	rng   *rand.Rand
}

func NewTicker[T any](items []T, rng *rand.Rand) *Ticker[T] {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	t := &Ticker[T]{rng: rng, last: -1}
	t.Reset(items)
	return t
}

// Reset swaps in a fresh feed and discards the current queue.
func (t *Ticker[T]) Reset(items []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append([]T(nil), items...)
	t.queue = nil
	t.last = -1
}

// Next returns the next entry, or false when the feed is empty.
func (t *Ticker[T]) Next() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if len(t.items) == 0 {
		return zero, false
	}
	if len(t.queue) == 0 {
		t.refill()
	}
	idx := t.queue[0]
	t.queue = t.queue[1:]
	t.last = idx
	return t.items[idx], true
}

func (t *Ticker[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Ticker[T]) refill() {
	t.queue = make([]int, len(t.items))
	for i := range t.queue {
		t.queue[i] = i
	}
	t.rng.Shuffle(len(t.queue), func(i, j int) { t.queue[i], t.queue[j] = t.queue[j], t.queue[i] })
	// avoid showing the same entry twice across the reshuffle boundary
	if len(t.queue) > 1 && t.queue[0] == t.last {
		t.queue[0], t.queue[len(t.queue)-1] = t.queue[len(t.queue)-1], t.queue[0]
	}
}
