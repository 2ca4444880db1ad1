package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/product"
	"golang.org/x/sync/singleflight"
)

const maxSessionIDLength = 128

var ErrInvalidSession = errors.New("invalid session id")

// ProductLookup resolves catalog entries for pricing.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

// Notifier is told about every committed cart mutation.
type Notifier interface {
	NotifyCartChanged(sessionID string)
}

// Service orchestrates cart operations.
type Service struct {
	repo     Repository
	products ProductLookup
	cache    Cache
	notifier Notifier
	sfg      singleflight.Group
	// epoch advances after every committed mutation so reads that start
	// afterwards never join a flight that began before it.
	epoch    atomic.Int64
	now      func() time.Time
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(repo Repository, products ProductLookup, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		products: products,
		cache:    NoopCache{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validSession(sessionID string) error {
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return ErrInvalidSession
	}
	return nil
}

// GetCart never reports a missing cart: a session without one gets an empty
// cart that is not persisted.
func (s *Service) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}

	flight := sessionID + "#" + strconv.FormatInt(s.epoch.Load(), 10)
	v, err, _ := s.sfg.Do(flight, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warnw("cart cache get failed", "session_id", sessionID, "error", err)
		}

		gen, genErr := s.cache.Generation(ctx, sessionID)
		if genErr != nil {
			log.Warnw("cart cache generation failed", "session_id", sessionID, "error", genErr)
		}

		c, err = s.repo.Get(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			return NewCart(sessionID, s.now().UTC()), nil
		}
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			if err := s.cache.Set(ctx, sessionID, c, gen); err != nil {
				log.Warnw("cart cache set failed", "session_id", sessionID, "error", err)
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart).Clone(), nil
}

// Snapshot reads the cart straight from the repository. Checkout uses it so
// an order is never built from a cached copy.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	c, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return NewCart(sessionID, s.now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", sessionID, err)
	}
	return c, nil
}

// Count returns the total quantity across the cart's lines.
func (s *Service) Count(ctx context.Context, sessionID string) (int, error) {
	c, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// AddItem accumulates qty onto the product's line, capturing the current
// catalog price when the line is new.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, qty int) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(c *Cart) error {
		c.Add(p.ID, qty, p.CurrentPrice)
		return nil
	})
}

// UpdateItem sets the quantity of a line. Zero or less removes it.
func (s *Service) UpdateItem(ctx context.Context, sessionID, productID string, qty int) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return s.RemoveItem(ctx, sessionID, productID)
	}
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		if !c.SetQuantity(productID, qty) {
			return ErrItemNotInCart
		}
		return nil
	})
}

// RemoveItem is idempotent: removing an absent line is not an error.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	return s.mutateExisting(ctx, sessionID, func(c *Cart) error {
		c.Remove(productID)
		return nil
	})
}

// ClearCart empties the cart but keeps it.
func (s *Service) ClearCart(ctx context.Context, sessionID string) (*Cart, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	return s.mutateExisting(ctx, sessionID, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// PurgeStale removes carts idle since before.
func (s *Service) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.PurgeStale(ctx, before)
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.repo.Mutate(ctx, sessionID, fn)
	if err != nil {
		if errors.Is(err, ErrItemNotInCart) || errors.Is(err, ErrInvalidQuantity) {
			return nil, err
		}
		return nil, fmt.Errorf("mutate cart %s: %w", sessionID, err)
	}

	s.epoch.Add(1)
	s.invalidate(sessionID)
	if s.notifier != nil {
		s.notifier.NotifyCartChanged(sessionID)
	}
	return c, nil
}

// mutateExisting leaves sessions without a cart untouched, so removing or
// clearing never creates one.
func (s *Service) mutateExisting(ctx context.Context, sessionID string, fn func(*Cart) error) (*Cart, error) {
	_, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return NewCart(sessionID, s.now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", sessionID, err)
	}
	return s.mutate(ctx, sessionID, fn)
}

func (s *Service) invalidate(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, sessionID); err != nil {
		log.Warnw("cart cache invalidate failed", "session_id", sessionID, "error", err)
	}
}
