package product

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError lists every invalid field of a product payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product: %d field(s)", len(e.Fields))
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (Product, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if errs := p.Validate(); len(errs) > 0 {
		return Product{}, &ValidationError{Fields: errs}
	}
	s.prepare(&p)
	return s.repo.Create(ctx, p)
}

// ResetProducts replaces the catalog with the given list (used for seeding).
func (s *Service) ResetProducts(ctx context.Context, products []Product) error {
	seen := make(map[string]bool, len(products))
	for i := range products {
		if errs := products[i].Validate(); len(errs) > 0 {
			return fmt.Errorf("product %d (%s): %w", i, products[i].Slug, &ValidationError{Fields: errs})
		}
		if seen[products[i].Slug] {
			return fmt.Errorf("product %d (%s): %w", i, products[i].Slug, ErrSlugExists)
		}
		seen[products[i].Slug] = true
		s.prepare(&products[i])
	}
	return s.repo.Reset(ctx, products)
}

func (s *Service) prepare(p *Product) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
