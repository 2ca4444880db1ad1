package feed

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/ebook-storefront/internal/order"
)

type sourceFunc func(ctx context.Context, limit int) ([]order.Order, error)

func (f sourceFunc) ListRecentPaid(ctx context.Context, limit int) ([]order.Order, error) {
	return f(ctx, limit)
}

func paidOrder(number, name, city string, paidAt time.Time, titles ...string) order.Order {
	o := order.Order{OrderNumber: number, CustomerName: name, City: city, Status: order.StatusPaid, PaidAt: &paidAt}
	for _, title := range titles {
		o.Items = append(o.Items, order.Item{Title: title, Quantity: 1})
	}
	return o
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := map[time.Duration]string{
		10 * time.Second: "just now",
		time.Minute:      "1 minute ago",
		5 * time.Minute:  "5 minutes ago",
		time.Hour:        "1 hour ago",
		3 * time.Hour:    "3 hours ago",
		24 * time.Hour:   "1 day ago",
		72 * time.Hour:   "3 days ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, RelativeTime(now, now.Add(-ago)), ago.String())
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Rajesh from Mumbai", DisplayName("Rajesh Kumar", "Mumbai"))
	assert.Equal(t, "Priya", DisplayName("Priya", ""))
	assert.Equal(t, "Someone from Pune", DisplayName("  ", "Pune"))
}

func TestListRecentPurchases_OneEntryPerItem(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var asked int
	s := NewService(sourceFunc(func(_ context.Context, limit int) ([]order.Order, error) {
		asked = limit
		return []order.Order{
			paidOrder("ORD-1", "Rajesh Kumar", "Mumbai", now.Add(-2*time.Minute), "System Design", "Patterns"),
			paidOrder("ORD-2", "Priya S", "Bangalore", now.Add(-5*time.Minute), "Foundations"),
		}, nil
	}))
	s.now = func() time.Time { return now }

	got := s.ListRecentPurchases(context.Background(), 0)
	assert.Equal(t, DefaultLimit, asked)
	require.Len(t, got, 3)
	assert.Equal(t, Purchase{CustomerDisplayName: "Rajesh from Mumbai", ProductName: "System Design", RelativeTime: "2 minutes ago", Location: "Mumbai"}, got[0])
	assert.Equal(t, "Patterns", got[1].ProductName)
	assert.Equal(t, "Priya from Bangalore", got[2].CustomerDisplayName)

	got = s.ListRecentPurchases(context.Background(), 2)
	assert.Len(t, got, 2)

	s.ListRecentPurchases(context.Background(), 500)
	assert.Equal(t, MaxLimit, asked)
}

func TestListRecentPurchases_DegradesToEmpty(t *testing.T) {
	s := NewService(sourceFunc(func(context.Context, int) ([]order.Order, error) {
		return nil, errors.New("db down")
	}))
	got := s.ListRecentPurchases(context.Background(), 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	app := fiber.New()
	NewHandler(s).RegisterPublicRoutes(app)
	res, err := app.Test(httptest.NewRequest("GET", "/orders/recent-purchases?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	var body []Purchase
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Empty(t, body)
}

func TestTicker_ShowsEveryEntryOncePerRound(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	tk := NewTicker(items, rand.New(rand.NewPCG(1, 2)))

	var prev string
	for round := 0; round < 20; round++ {
		seen := map[string]int{}
		for i := 0; i < len(items); i++ {
			v, ok := tk.Next()
			require.True(t, ok)
			if i == 0 && round > 0 {
				assert.NotEqual(t, prev, v, "no repeat across reshuffle")
			}
			seen[v]++
			prev = v
		}
		assert.Len(t, seen, len(items))
		for _, n := range seen {
			assert.Equal(t, 1, n)
		}
	}
}

func TestTicker_EmptyAndReset(t *testing.T) {
	tk := NewTicker[string](nil, nil)
	_, ok := tk.Next()
	assert.False(t, ok)

	tk.Reset([]string{"only"})
	v, ok := tk.Next()
	assert.True(t, ok)
	assert.Equal(t, "only", v)
	v, _ = tk.Next()
	assert.Equal(t, "only", v)
	assert.Equal(t, 1, tk.Len())
}
