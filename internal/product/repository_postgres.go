package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/wichananm65/ebook-storefront/internal/database"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	productColumns = `id, slug, title, image, original_price, current_price, description, long_description, features, created_at, updated_at`

	listProductsQuery = `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at, id
	`
	getProductByIDQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`
	getProductBySlugQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE slug = $1
	`
	insertProductQuery = `
		INSERT INTO products (id, slug, title, image, original_price, current_price, description, long_description, features, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	deleteProductsQuery = `DELETE FROM products`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p        Product
		features []string
	)
	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Title,
		&p.Image,
		&p.OriginalPrice,
		&p.CurrentPrice,
		&p.Description,
		&p.LongDescription,
		pq.Array(&features),
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	if features == nil {
		features = []string{}
	}
	p.Features = features
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Product, error) {
	return r.getOne(ctx, getProductByIDQuery, id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (Product, error) {
	return r.getOne(ctx, getProductBySlugQuery, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	if err := insertProduct(ctx, r.db, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertProduct(ctx context.Context, db execer, p Product) error {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	_, err := db.ExecContext(ctx,
		insertProductQuery,
		p.ID,
		p.Slug,
		p.Title,
		p.Image,
		p.OriginalPrice,
		p.CurrentPrice,
		p.Description,
		p.LongDescription,
		pq.Array(features),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("insert product %s: %w", p.Slug, err)
	}
	return nil
}

// Reset deletes all products and inserts the provided list in a single transaction.
func (r *PostgresRepository) Reset(ctx context.Context, products []Product) error {
	return database.WithTransaction(ctx, r.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteProductsQuery); err != nil {
			return fmt.Errorf("clear products: %w", err)
		}
		for _, p := range products {
			if err := insertProduct(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}
