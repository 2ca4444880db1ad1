package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/ebook-storefront/internal/contact"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/recommended"
)

type captured struct {
	from string
	to   []string
	msg  string
}

func newTestMailer(c *captured) *Mailer {
	m := New(Config{Host: "smtp.example.com", Port: 465, User: "u", Password: "p", FromEmail: "shop@example.com", FromName: "BookShop"})
	m.send = func(_ context.Context, from string, to []string, msg []byte) error {
		c.from, c.to, c.msg = from, to, string(msg)
		return nil
	}
	return m
}

func TestSendOrderConfirmation(t *testing.T) {
	c := &captured{}
	m := newTestMailer(c)
	o := order.Order{
		OrderNumber:   "ORD-20260101000000-ABC123",
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		Items:         []order.Item{{Title: "System Design", Quantity: 3, PriceAtTime: 499}},
		TotalAmount:   1497,
		Discount:      3000,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, m.SendOrderConfirmation(context.Background(), o))

	assert.Equal(t, "shop@example.com", c.from)
	assert.Equal(t, []string{"asha@example.com"}, c.to)
	assert.Contains(t, c.msg, "Subject: ")
	assert.Contains(t, c.msg, "Hi Asha,")
	assert.Contains(t, c.msg, "₹1497.00")
	assert.Contains(t, c.msg, "-₹3000.00")
	assert.Contains(t, c.msg, "Payment reference: N/A")
	assert.Contains(t, c.msg, "Content-Type: text/html; charset=UTF-8")
}

func TestSendContactNotification_EscapesInput(t *testing.T) {
	c := &captured{}
	m := newTestMailer(c)
	err := m.SendContactNotification(context.Background(), contact.Message{
		Name: "Eve", Email: "eve@example.com", Subject: "Hi", Message: "<script>alert(1)</script>", CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"shop@example.com"}, c.to)
	assert.Contains(t, c.msg, "Reply-To: eve@example.com")
	assert.False(t, strings.Contains(c.msg, "<script>"))
	assert.Contains(t, c.msg, "&lt;script&gt;")
}

func TestDisabledMailer(t *testing.T) {
	m := New(Config{})
	assert.ErrorIs(t, m.SendOrderConfirmation(context.Background(), order.Order{}), ErrDisabled)
	assert.ErrorIs(t, m.SendContactNotification(context.Background(), contact.Message{}), ErrDisabled)
}

type stubRecommender struct {
	owned []string
}

func (s *stubRecommender) ForOrder(_ context.Context, owned []string, limit int) []recommended.Item {
	s.owned = owned
	return []recommended.Item{{ProductID: "p3", Title: "Architecture Patterns", CurrentPrice: 499}}[:min(limit, 1)]
}

func TestSendOrderConfirmation_SuggestsOtherBooks(t *testing.T) {
	c := &captured{}
	rec := &stubRecommender{}
	m := newTestMailer(c)
	WithRecommender(rec)(m)

	o := order.Order{
		OrderNumber:   "ORD-1",
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		Items:         []order.Item{{ProductID: "p2", Title: "System Design", Quantity: 1, PriceAtTime: 499}},
		TotalAmount:   499,
	}
	require.NoError(t, m.SendOrderConfirmation(context.Background(), o))

	assert.Equal(t, []string{"p2"}, rec.owned)
	assert.Contains(t, c.msg, "Explore More Books")
	assert.Contains(t, c.msg, "Architecture Patterns")
}
