package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/cartsync"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/payment"
)

// ErrCheckoutInFlight is returned when a second checkout step starts while
// another one has not returned yet.
var ErrCheckoutInFlight = errors.New("checkout already in progress")

// Checkout drives one session through order creation and the payment
// handshake. Only one step runs at a time.
type Checkout struct {
	api       *Client
	bus       *cartsync.Bus
	sessionID string
	busy      atomic.Bool
}

// Pending is an order waiting for the payer. Intent is nil when the store
// runs without a gateway.
type Pending struct {
	Order  order.Order     `json:"order"`
	Intent *payment.Intent `json:"intent,omitempty"`
}

func (c *Client) NewCheckout(sessionID string, bus *cartsync.Bus) *Checkout {
	return &Checkout{api: c, bus: bus, sessionID: sessionID}
}

func (ck *Checkout) guard() (release func(), err error) {
	if !ck.busy.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	return func() { ck.busy.Store(false) }, nil
}

// InFlight reports whether a step is currently running.
func (ck *Checkout) InFlight() bool {
	return ck.busy.Load()
}

// Start creates the order from the current cart and, in gateway mode, the
// gateway order the payer completes.
func (ck *Checkout) Start(ctx context.Context, billing order.Billing) (Pending, error) {
	release, err := ck.guard()
	if err != nil {
		return Pending{}, err
	}
	defer release()

	cfg, err := ck.api.PaymentConfig(ctx)
	if err != nil {
		return Pending{}, err
	}
	o, err := ck.api.CreateOrder(ctx, ck.sessionID, billing)
	if err != nil {
		return Pending{}, err
	}
	if cfg.Mode == payment.ModeDirect {
		ck.notify()
		return Pending{Order: o}, nil
	}

	intent, err := ck.api.CreateGatewayOrder(ctx, o.OrderNumber)
	if err != nil {
		return Pending{Order: o}, err
	}
	if intent.KeyID == "" {
		intent.KeyID = cfg.KeyID
	}
	return Pending{Order: o, Intent: &intent}, nil
}

// Complete hands the gateway's signed callback to the server. The cart is
// cleared server-side on success.
func (ck *Checkout) Complete(ctx context.Context, v payment.Verification) (order.Order, error) {
	release, err := ck.guard()
	if err != nil {
		return order.Order{}, err
	}
	defer release()

	o, err := ck.api.VerifyPayment(ctx, v)
	if err != nil {
		return order.Order{}, err
	}
	ck.notify()
	return o, nil
}

// Dismiss records that the payer closed the gateway without paying. The
// order can be retried with Resume.
func (ck *Checkout) Dismiss(ctx context.Context, orderNumber string) (order.Order, error) {
	release, err := ck.guard()
	if err != nil {
		return order.Order{}, err
	}
	defer release()

	o, err := ck.api.CancelPayment(ctx, orderNumber)
	if err != nil {
		return order.Order{}, err
	}
	ck.notify()
	return o, nil
}

// Resume requests the gateway order again for an existing order.
func (ck *Checkout) Resume(ctx context.Context, orderNumber string) (payment.Intent, error) {
	release, err := ck.guard()
	if err != nil {
		return payment.Intent{}, err
	}
	defer release()

	return ck.api.CreateGatewayOrder(ctx, orderNumber)
}

func (ck *Checkout) notify() {
	if ck.bus == nil {
		return
	}
	log.Debugw("cart changed by checkout", "session_id", ck.sessionID)
	ck.bus.NotifyCartChanged(ck.sessionID)
}
