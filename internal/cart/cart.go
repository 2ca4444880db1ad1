package cart

import "time"

// LineItem is a product in a cart with the price captured when it was added.
type LineItem struct {
	ProductID   string `json:"product_id" bson:"product_id"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	PriceAtTime int64  `json:"price_at_time" bson:"price_at_time"`
}

// Cart is keyed by an anonymous session id. Items are unique by product id
// and keep insertion order.
type Cart struct {
	SessionID string     `json:"session_id" bson:"session_id"`
	Items     []LineItem `json:"items" bson:"items"`
	Version   int64      `json:"-" bson:"version"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func NewCart(sessionID string, now time.Time) *Cart {
	return &Cart{
		SessionID: sessionID,
		Items:     []LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add accumulates qty onto an existing line or appends a new one priced at
// price. The captured price of an existing line is left untouched.
func (c *Cart) Add(productID string, qty int, price int64) {
	if i := c.find(productID); i >= 0 {
		c.Items[i].Quantity += qty
		return
	}
	c.Items = append(c.Items, LineItem{ProductID: productID, Quantity: qty, PriceAtTime: price})
}

// SetQuantity overwrites a line's quantity. A quantity of zero or less removes
// the line. It reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.find(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = qty
	return true
}

func (c *Cart) Remove(productID string) {
	if i := c.find(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Count is the sum of quantities across lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total is the sum of captured price times quantity.
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.PriceAtTime * int64(it.Quantity)
	}
	return total
}

func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
