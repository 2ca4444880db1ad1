package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/cart"
	"github.com/wichananm65/ebook-storefront/internal/events"
	"github.com/wichananm65/ebook-storefront/internal/order"
)

const mailTimeout = 30 * time.Second

var (
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrMissingOrderNumber = errors.New("order_number is required")
	ErrGatewayDisabled    = errors.New("payment gateway is disabled in direct checkout mode")
)

// OrderStore is the part of the order service reconciliation drives.
type OrderStore interface {
	Get(ctx context.Context, number string) (order.Order, error)
	Transition(ctx context.Context, number string, fn func(*order.Order) error) (order.Order, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, sessionID string) (*cart.Cart, error)
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, o order.Order) error
}

// Intent is what the browser needs to open the gateway checkout.
type Intent struct {
	GatewayOrderID string `json:"gateway_order_id"`
	OrderNumber    string `json:"order_number"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

type Verification struct {
	OrderNumber      string `json:"order_number"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

func (v Verification) complete() bool {
	return v.OrderNumber != "" && v.GatewayOrderID != "" && v.GatewayPaymentID != "" && v.Signature != ""
}

type PublicConfig struct {
	KeyID    string `json:"key_id"`
	Currency string `json:"currency"`
	Mode     string `json:"mode"`
}

const (
	ModeGateway = "gateway"
	ModeDirect  = "direct"
)

type Config struct {
	KeyID     string
	KeySecret string
	Currency  string
}

// Service moves orders through payment: gateway intent, signature
// verification, cancellation.
type Service struct {
	orders    OrderStore
	carts     CartClearer
	gateway   Gateway
	publisher events.Publisher
	mailer    Mailer
	cfg       Config
	now       func() time.Time
	spawn     func(func())
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the reconciliation service. A nil gateway means direct
// checkout: gateway intents are refused.
func NewService(orders OrderStore, carts CartClearer, gateway Gateway, cfg Config, opts ...Option) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	s := &Service{
		orders:    orders,
		carts:     carts,
		gateway:   gateway,
		publisher: events.LogPublisher{},
		cfg:       cfg,
		now:       time.Now,
		spawn:     func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns only what may be shipped to a browser.
func (s *Service) Config() PublicConfig {
	if s.gateway == nil {
		return PublicConfig{Currency: s.cfg.Currency, Mode: ModeDirect}
	}
	return PublicConfig{KeyID: s.cfg.KeyID, Currency: s.cfg.Currency, Mode: ModeGateway}
}

// CreateGatewayOrder opens or reuses the gateway order for an order and
// moves it to payment_pending. A stored gateway order id is reused so a
// second call never creates a second charge. The gateway is called without
// holding the order lock; the id is stored afterwards in a short update.
func (s *Service) CreateGatewayOrder(ctx context.Context, number string) (Intent, error) {
	if number == "" {
		return Intent{}, ErrMissingOrderNumber
	}
	if s.gateway == nil {
		return Intent{}, ErrGatewayDisabled
	}

	current, err := s.orders.Get(ctx, number)
	if err != nil {
		return Intent{}, err
	}
	if current.Status == order.StatusPaid {
		return Intent{}, ErrAlreadyPaid
	}

	var created string
	if current.GatewayOrderID == "" {
		gw, err := s.gateway.CreateOrder(ctx, CreateOrderRequest{
			Amount:   ToMinorUnits(current.TotalAmount),
			Currency: s.cfg.Currency,
			Receipt:  current.OrderNumber,
			Notes: map[string]string{
				"order_number":   current.OrderNumber,
				"customer_email": current.CustomerEmail,
			},
		})
		if err != nil {
			return Intent{}, err
		}
		created = gw.ID
		log.Infow("gateway order created", "order_number", current.OrderNumber, "gateway_order_id", gw.ID)
	}

	updated, err := s.orders.Transition(ctx, number, func(o *order.Order) error {
		if o.Status == order.StatusPaid {
			return ErrAlreadyPaid
		}
		switch {
		case o.GatewayOrderID == "":
			o.GatewayOrderID = created
		case created != "" && created != o.GatewayOrderID:
			log.Warnw("gateway order superseded by concurrent request",
				"order_number", o.OrderNumber, "kept", o.GatewayOrderID, "unused", created)
		}
		o.Status = order.StatusPaymentPending
		return nil
	})
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		GatewayOrderID: updated.GatewayOrderID,
		OrderNumber:    updated.OrderNumber,
		Amount:         ToMinorUnits(updated.TotalAmount),
		Currency:       s.cfg.Currency,
		KeyID:          s.cfg.KeyID,
	}, nil
}

// VerifyPayment marks the order paid only when the signature recomputed
// with the server secret matches and the gateway order id is the one stored
// on the order. A failed check leaves the order in payment_failed, from
// which a correct retry can still succeed.
func (s *Service) VerifyPayment(ctx context.Context, v Verification) (order.Order, error) {
	if v.OrderNumber == "" {
		return order.Order{}, ErrMissingOrderNumber
	}

	current, err := s.orders.Get(ctx, v.OrderNumber)
	if err != nil {
		return order.Order{}, err
	}
	valid := v.complete() &&
		v.GatewayOrderID == current.GatewayOrderID &&
		VerifySignature(s.cfg.KeySecret, v.GatewayOrderID, v.GatewayPaymentID, v.Signature)

	if valid && current.Status == order.StatusCancelled {
		// The buyer paid after dismissing the checkout; reopen first.
		if _, err := s.orders.Transition(ctx, v.OrderNumber, func(o *order.Order) error {
			if o.Status == order.StatusCancelled {
				o.Status = order.StatusPaymentPending
			}
			return nil
		}); err != nil {
			return order.Order{}, err
		}
	}

	replay := false
	updated, err := s.orders.Transition(ctx, v.OrderNumber, func(o *order.Order) error {
		if o.Status == order.StatusPaid {
			if valid && o.GatewayPaymentID == v.GatewayPaymentID {
				replay = true
				return nil
			}
			return ErrAlreadyPaid
		}
		// Re-check under the row lock.
		ok := valid && v.GatewayOrderID == o.GatewayOrderID
		if !ok {
			if o.Status.CanTransitionTo(order.StatusPaymentFailed) {
				o.Status = order.StatusPaymentFailed
			}
			valid = false
			return nil
		}
		if !o.Status.CanTransitionTo(order.StatusPaid) {
			return fmt.Errorf("%w: order is %s", ErrVerificationFailed, o.Status)
		}
		paidAt := s.now().UTC()
		o.Status = order.StatusPaid
		o.GatewayPaymentID = v.GatewayPaymentID
		o.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	if !valid {
		log.Warnw("payment signature rejected", "order_number", v.OrderNumber, "gateway_order_id", v.GatewayOrderID)
		events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeOrderFailed, updated.OrderNumber, updated))
		return updated, ErrVerificationFailed
	}
	if replay {
		return updated, nil
	}

	log.Infow("payment verified", "order_number", updated.OrderNumber, "gateway_payment_id", updated.GatewayPaymentID)
	s.afterPaid(ctx, updated)
	return updated, nil
}

func (s *Service) afterPaid(ctx context.Context, o order.Order) {
	if s.carts != nil && o.SessionID != "" {
		if _, err := s.carts.ClearCart(ctx, o.SessionID); err != nil {
			log.Errorw("clear cart after payment failed", "order_number", o.OrderNumber, "session_id", o.SessionID, "error", err)
		}
	}
	events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeOrderPaid, o.OrderNumber, o))

	if s.mailer == nil {
		return
	}
	s.spawn(func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.SendOrderConfirmation(mailCtx, o); err != nil {
			log.Warnw("order confirmation email failed", "order_number", o.OrderNumber, "error", err)
		}
	})
}

// Cancel records that the buyer dismissed the gateway checkout. Cancelling
// twice is a no-op.
func (s *Service) Cancel(ctx context.Context, number string) (order.Order, error) {
	if number == "" {
		return order.Order{}, ErrMissingOrderNumber
	}
	changed := false
	o, err := s.orders.Transition(ctx, number, func(o *order.Order) error {
		switch o.Status {
		case order.StatusPaid:
			return ErrAlreadyPaid
		case order.StatusCancelled:
			return nil
		}
		o.Status = order.StatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	if changed {
		log.Infow("order cancelled", "order_number", number)
		events.PublishBestEffort(ctx, s.publisher, events.New(events.TypeOrderCancelled, o.OrderNumber, o))
	}
	return o, nil
}
