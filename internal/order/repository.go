package order

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrDuplicateNumber = errors.New("order number already exists")
)

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	// ListByEmail returns the customer's orders, newest first.
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	// Update runs fn on the locked order row and persists status, gateway
	// references and paid_at when fn returns nil.
	Update(ctx context.Context, number string, fn func(*Order) error) (Order, error)
	// ListRecentPaid returns paid orders, most recently paid first.
	ListRecentPaid(ctx context.Context, limit int) ([]Order, error)
	// ListStale returns up to limit orders in status last updated before before.
	ListStale(ctx context.Context, status Status, before time.Time, limit int) ([]Order, error)
}

// InMemoryRepository is used for tests and local runs.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewInMemoryRepository(seed []Order) *InMemoryRepository {
	r := &InMemoryRepository{orders: make(map[string]*Order, len(seed))}
	for i := range seed {
		o := seed[i].clone()
		r.orders[o.OrderNumber] = &o
	}
	return r
}

func (r *InMemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.OrderNumber]; exists {
		return Order{}, ErrDuplicateNumber
	}
	stored := o.clone()
	r.orders[o.OrderNumber] = &stored
	return o.clone(), nil
}

func (r *InMemoryRepository) GetByNumber(_ context.Context, number string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[number]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o.clone(), nil
}

func (r *InMemoryRepository) ListByEmail(_ context.Context, email string) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if strings.EqualFold(o.CustomerEmail, email) {
			out = append(out, o.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) Update(_ context.Context, number string, fn func(*Order) error) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return Order{}, ErrNotFound
	}
	working := o.clone()
	if err := fn(&working); err != nil {
		return Order{}, err
	}
	r.orders[number] = &working
	return working.clone(), nil
}

func (r *InMemoryRepository) ListRecentPaid(_ context.Context, limit int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.Status == StatusPaid && o.PaidAt != nil {
			out = append(out, o.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(*out[j].PaidAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) ListStale(_ context.Context, status Status, before time.Time, limit int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.Status == status && o.UpdatedAt.Before(before) {
			out = append(out, o.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
