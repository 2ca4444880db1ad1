package cart

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotInCart   = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrConflict        = errors.New("cart was modified concurrently")
)

// Repository stores carts. Mutate is the only write path: fn runs against the
// current cart (created lazily) while no other mutation for the same session
// can interleave, and its result is persisted only when fn returns nil.
type Repository interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (*Cart, error)
	// PurgeStale deletes carts not updated since before.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// InMemoryRepository is used for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*Cart
	now   func() time.Time
}

func NewInMemoryRepository(seed []*Cart) *InMemoryRepository {
	r := &InMemoryRepository{carts: make(map[string]*Cart, len(seed)), now: time.Now}
	for _, c := range seed {
		r.carts[c.SessionID] = c.Clone()
	}
	return r
}

func (r *InMemoryRepository) Get(_ context.Context, sessionID string) (*Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *InMemoryRepository) Mutate(_ context.Context, sessionID string, fn func(*Cart) error) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var working *Cart
	if existing, ok := r.carts[sessionID]; ok {
		working = existing.Clone()
	} else {
		working = NewCart(sessionID, now)
	}

	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version++
	working.UpdatedAt = now
	r.carts[sessionID] = working
	return working.Clone(), nil
}

func (r *InMemoryRepository) PurgeStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.carts {
		if c.UpdatedAt.Before(before) {
			delete(r.carts, id)
			n++
		}
	}
	return n, nil
}
