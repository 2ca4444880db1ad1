package testimonial

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/wichananm65/ebook-storefront/internal/database"
)

type Repository interface {
	// ListActive returns active testimonials ordered by id.
	ListActive(ctx context.Context) ([]Testimonial, error)
	// Reset replaces every testimonial; used by seeding.
	Reset(ctx context.Context, items []Testimonial) error
}

type InMemoryRepository struct {
	mu    sync.RWMutex
	items []Testimonial
}

func NewInMemoryRepository(seed []Testimonial) *InMemoryRepository {
	return &InMemoryRepository{items: append([]Testimonial(nil), seed...)}
}

func (r *InMemoryRepository) ListActive(_ context.Context) ([]Testimonial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Testimonial, 0, len(r.items))
	for _, t := range r.items {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Reset(_ context.Context, items []Testimonial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]Testimonial(nil), items...)
	return nil
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]Testimonial, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, position, image, text, is_active, created_at
		FROM testimonials
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list testimonials: %w", err)
	}
	defer rows.Close()

	out := make([]Testimonial, 0)
	for rows.Next() {
		var t Testimonial
		if err := rows.Scan(&t.ID, &t.Name, &t.Position, &t.Image, &t.Text, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan testimonial: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Reset(ctx context.Context, items []Testimonial) error {
	return database.WithTransaction(ctx, r.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM testimonials`); err != nil {
			return fmt.Errorf("clear testimonials: %w", err)
		}
		for _, t := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO testimonials (id, name, position, image, text, is_active)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				t.ID, t.Name, t.Position, t.Image, t.Text, t.IsActive)
			if err != nil {
				return fmt.Errorf("insert testimonial %d: %w", t.ID, err)
			}
		}
		// keep the serial ahead of the explicit ids
		_, err := tx.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('testimonials', 'id'), COALESCE(MAX(id), 1)) FROM testimonials`)
		if err != nil {
			return fmt.Errorf("advance testimonial sequence: %w", err)
		}
		return nil
	})
}
