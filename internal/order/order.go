package order

import (
	"time"
)

type Status string

const (
	StatusCreated        Status = "created"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCancelled      Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusCreated:        {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:  {StatusPaid, StatusPaymentFailed, StatusPaymentPending, StatusCancelled},
	StatusCancelled:      {StatusPaymentPending},
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Paid orders never move again.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusPaid
}

// Billing is the buyer-supplied checkout form.
type Billing struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// Item is a line snapshotted from the cart when the order was placed.
type Item struct {
	ProductID     string `json:"product_id"`
	Title         string `json:"product_title"`
	Image         string `json:"image,omitempty"`
	Quantity      int    `json:"quantity"`
	PriceAtTime   int64  `json:"price_at_time"`
	OriginalPrice int64  `json:"original_price"`
}

type Order struct {
	OrderNumber      string     `json:"order_number"`
	SessionID        string     `json:"session_id"`
	CustomerName     string     `json:"customer_name"`
	CustomerEmail    string     `json:"customer_email"`
	CustomerPhone    string     `json:"customer_phone"`
	BillingAddress   string     `json:"billing_address,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Pincode          string     `json:"pincode,omitempty"`
	Items            []Item     `json:"items"`
	SubtotalOriginal int64      `json:"subtotal_original"`
	Discount         int64      `json:"discount"`
	TotalAmount      int64      `json:"total_amount"`
	Status           Status     `json:"status"`
	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Recompute derives the totals from the snapshotted items.
func (o *Order) Recompute() {
	var total, original int64
	for _, it := range o.Items {
		total += it.PriceAtTime * int64(it.Quantity)
		original += it.OriginalPrice * int64(it.Quantity)
	}
	if original < total {
		original = total
	}
	o.TotalAmount = total
	o.SubtotalOriginal = original
	o.Discount = original - total
}

func (o *Order) clone() Order {
	out := *o
	out.Items = make([]Item, len(o.Items))
	copy(out.Items, o.Items)
	if o.PaidAt != nil {
		t := *o.PaidAt
		out.PaidAt = &t
	}
	return out
}
