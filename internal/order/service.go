package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/cart"
	"github.com/wichananm65/ebook-storefront/internal/events"
	"github.com/wichananm65/ebook-storefront/internal/product"
)

const (
	numberAttempts = 3
	expireBatch    = 100
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrProductNotFound   = product.ErrNotFound
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrInvalidEmail      = errors.New("email is required")
)

// CartSource is the part of the cart service the order flow reads and clears.
// Snapshot must read the committed cart, not a cached copy.
type CartSource interface {
	Snapshot(ctx context.Context, sessionID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, sessionID string) (*cart.Cart, error)
}

type ProductLookup interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

// Service materializes carts into orders and guards order status changes.
type Service struct {
	repo           Repository
	carts          CartSource
	products       ProductLookup
	publisher      events.Publisher
	direct         bool
	requireAddress bool
	now            func() time.Time
	newNumber      func(time.Time) string
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithDirectCheckout makes CreateOrder clear the cart immediately, for
// deployments without a payment gateway.
func WithDirectCheckout(direct bool) Option {
	return func(s *Service) { s.direct = direct }
}

func WithRequireAddress(require bool) Option {
	return func(s *Service) { s.requireAddress = require }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNumberGenerator(gen func(time.Time) string) Option {
	return func(s *Service) { s.newNumber = gen }
}

func NewService(repo Repository, carts CartSource, products ProductLookup, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		carts:     carts,
		products:  products,
		publisher: events.LogPublisher{},
		now:       time.Now,
		newNumber: NewNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequiresAddress reports whether address, state and pincode are mandatory.
func (s *Service) RequiresAddress() bool { return s.requireAddress }

// CreateOrder snapshots the session's cart into a new order in status created.
// Totals are always derived from the snapshot.
func (s *Service) CreateOrder(ctx context.Context, sessionID string, billing Billing) (Order, error) {
	b := billing.Normalize()
	if err := b.Validate(s.requireAddress); err != nil {
		return Order{}, err
	}

	c, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		return Order{}, err
	}
	if c.IsEmpty() {
		return Order{}, ErrEmptyCart
	}

	items := make([]Item, 0, len(c.Items))
	for _, line := range c.Items {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return Order{}, fmt.Errorf("product %s: %w", line.ProductID, ErrProductNotFound)
			}
			return Order{}, fmt.Errorf("resolve product %s: %w", line.ProductID, err)
		}
		items = append(items, Item{
			ProductID:     line.ProductID,
			Title:         p.Title,
			Image:         p.Image,
			Quantity:      line.Quantity,
			PriceAtTime:   line.PriceAtTime,
			OriginalPrice: p.OriginalPrice,
		})
	}

	now := s.now().UTC()
	o := Order{
		SessionID:      sessionID,
		CustomerName:   b.Name,
		CustomerEmail:  b.Email,
		CustomerPhone:  b.Phone,
		BillingAddress: b.Address,
		City:           b.City,
		State:          b.State,
		Pincode:        b.Pincode,
		Items:          items,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.Recompute()

	var created Order
	for attempt := 1; ; attempt++ {
		o.OrderNumber = s.newNumber(now)
		created, err = s.repo.Create(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateNumber) || attempt == numberAttempts {
			return Order{}, fmt.Errorf("create order: %w", err)
		}
		log.Warnw("order number collision, retrying", "order_number", o.OrderNumber, "attempt", attempt)
	}

	log.Infow("order created", "order_number", created.OrderNumber, "session_id", sessionID, "total_amount", created.TotalAmount)

	if s.direct {
		if _, err := s.carts.ClearCart(ctx, sessionID); err != nil {
			log.Errorw("clear cart after direct checkout failed", "order_number", created.OrderNumber, "error", err)
		}
	}
	events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeOrderCreated, created.OrderNumber, created))
	return created, nil
}

func (s *Service) Get(ctx context.Context, number string) (Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	if email == "" {
		return nil, ErrInvalidEmail
	}
	return s.repo.ListByEmail(ctx, email)
}

func (s *Service) ListRecentPaid(ctx context.Context, limit int) ([]Order, error) {
	return s.repo.ListRecentPaid(ctx, limit)
}

// Transition runs fn on the locked order and rejects status changes the
// state machine does not allow. fn may return an error to abort.
func (s *Service) Transition(ctx context.Context, number string, fn func(*Order) error) (Order, error) {
	return s.repo.Update(ctx, number, func(o *Order) error {
		prev := o.Status
		if err := fn(o); err != nil {
			return err
		}
		if o.Status != prev && !prev.CanTransitionTo(o.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, o.Status)
		}
		o.UpdatedAt = s.now().UTC()
		return nil
	})
}

// ExpirePending cancels orders left awaiting payment since before. In direct
// checkout mode created orders are final and are left alone.
func (s *Service) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	statuses := []Status{StatusPaymentPending}
	if !s.direct {
		statuses = append(statuses, StatusCreated)
	}

	expired := 0
	for _, status := range statuses {
		stale, err := s.repo.ListStale(ctx, status, before, expireBatch)
		if err != nil {
			return expired, fmt.Errorf("list stale %s orders: %w", status, err)
		}
		for _, candidate := range stale {
			o, err := s.Transition(ctx, candidate.OrderNumber, func(o *Order) error {
				if o.Status != status || !o.UpdatedAt.Before(before) {
					return errSkip
				}
				o.Status = StatusCancelled
				return nil
			})
			if errors.Is(err, errSkip) {
				continue
			}
			if err != nil {
				log.Warnw("expire order failed", "order_number", candidate.OrderNumber, "error", err)
				continue
			}
			expired++
			events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeOrderCancelled, o.OrderNumber, o))
		}
	}
	return expired, nil
}

var errSkip = errors.New("order changed since listed")
