package product

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrSlugExists = errors.New("product slug already exists")
)

type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	GetBySlug(ctx context.Context, slug string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	// Reset replaces all products with the provided list (used for seeding)
	Reset(ctx context.Context, products []Product) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// local runs without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Product
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{storage: make([]Product, 0, len(seed))}
	r.storage = append(r.storage, seed...)
	return r
}

func (r *InMemoryRepository) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, len(r.storage))
	copy(out, r.storage)
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.storage {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *InMemoryRepository) GetBySlug(_ context.Context, slug string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.storage {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.Slug == p.Slug {
			return Product{}, ErrSlugExists
		}
	}
	r.storage = append(r.storage, p)
	return p, nil
}

// SetPrice changes the current price of a stored product. Used by tests that
// exercise price changes after items were added to a cart.
func (r *InMemoryRepository) SetPrice(id string, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			r.storage[i].CurrentPrice = price
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) Reset(_ context.Context, products []Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage = make([]Product, 0, len(products))
	r.storage = append(r.storage, products...)
	return nil
}
