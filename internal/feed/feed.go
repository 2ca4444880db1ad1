package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/order"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Purchase is one social-proof line: who bought what, and how long ago.
type Purchase struct {
	CustomerDisplayName string `json:"customer_display_name"`
	ProductName         string `json:"product_name"`
	RelativeTime        string `json:"relative_time"`
	Location            string `json:"location,omitempty"`
}

type Source interface {
	ListRecentPaid(ctx context.Context, limit int) ([]order.Order, error)
}

type Service struct {
	source Source
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ListRecentPurchases projects paid orders into feed entries, one per line
// item. It never fails: an unreachable source yields an empty feed.
func (s *Service) ListRecentPurchases(ctx context.Context, limit int) []Purchase {
	limit = clampLimit(limit)
	orders, err := s.source.ListRecentPaid(ctx, limit)
	if err != nil {
		log.Warnw("recent purchases unavailable", "error", err)
		return []Purchase{}
	}

	now := s.now()
	out := make([]Purchase, 0, limit)
	for _, o := range orders {
		if o.PaidAt == nil {
			continue
		}
		name := DisplayName(o.CustomerName, o.City)
		for _, it := range o.Items {
			if len(out) == limit {
				return out
			}
			out = append(out, Purchase{
				CustomerDisplayName: name,
				ProductName:         it.Title,
				RelativeTime:        RelativeTime(now, *o.PaidAt),
				Location:            o.City,
			})
		}
	}
	return out
}

// DisplayName reduces a customer to "<first name> from <city>".
func DisplayName(fullName, city string) string {
	first := "Someone"
	if fields := strings.Fields(fullName); len(fields) > 0 {
		first = fields[0]
	}
	if city = strings.TrimSpace(city); city != "" {
		return first + " from " + city
	}
	return first
}

func RelativeTime(now, then time.Time) string {
	d := now.Sub(then)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
