package recommended

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/product"
)

const (
	DefaultLimit = 3
	MaxLimit     = 12
)

// Item is a product suggested next to a product page or in an order email.
type Item struct {
	ProductID     string `json:"product_id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Image         string `json:"image"`
	OriginalPrice int64  `json:"original_price"`
	CurrentPrice  int64  `json:"current_price"`
}

// Catalog lists every product that can be suggested.
type Catalog interface {
	List(ctx context.Context) ([]product.Product, error)
}

type Service struct {
	catalog Catalog
}

func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ForOrder suggests products the buyer does not already own, biggest
// discount first. A catalog failure yields no suggestions.
func (s *Service) ForOrder(ctx context.Context, owned []string, limit int) []Item {
	products, err := s.catalog.List(ctx)
	if err != nil {
		log.Warnw("load recommendations failed", "error", err)
		return []Item{}
	}
	skip := make(map[string]bool, len(owned))
	for _, id := range owned {
		skip[id] = true
	}
	return pick(products, skip, clampLimit(limit))
}

// ForProduct suggests other products to show on slug's page.
func (s *Service) ForProduct(ctx context.Context, slug string, limit int) ([]Item, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	skip := map[string]bool{}
	found := false
	for _, p := range products {
		if p.Slug == slug {
			skip[p.ID] = true
			found = true
		}
	}
	if !found {
		return nil, product.ErrNotFound
	}
	return pick(products, skip, clampLimit(limit)), nil
}

func pick(products []product.Product, skip map[string]bool, limit int) []Item {
	out := make([]Item, 0, limit)
	for _, p := range products {
		if skip[p.ID] {
			continue
		}
		out = append(out, Item{
			ProductID:     p.ID,
			Slug:          p.Slug,
			Title:         p.Title,
			Image:         p.Image,
			OriginalPrice: p.OriginalPrice,
			CurrentPrice:  p.CurrentPrice,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := out[i].OriginalPrice - out[i].CurrentPrice
		dj := out[j].OriginalPrice - out[j].CurrentPrice
		if di != dj {
			return di > dj
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
