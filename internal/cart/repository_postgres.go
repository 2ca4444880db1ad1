package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wichananm65/ebook-storefront/internal/database"
)

type PostgresRepository struct {
	db   *sql.DB
	opts database.TxOptions
	now  func() time.Time
}

const (
	getCartQuery = `
		SELECT session_id, items, version, created_at, updated_at
		FROM carts
		WHERE session_id = $1
	`
	ensureCartQuery = `
		INSERT INTO carts (session_id, items, version, created_at, updated_at)
		VALUES ($1, '[]', 0, $2, $2)
		ON CONFLICT (session_id) DO NOTHING
	`
	lockCartQuery = `
		SELECT session_id, items, version, created_at, updated_at
		FROM carts
		WHERE session_id = $1
		FOR UPDATE
	`
	updateCartQuery = `
		UPDATE carts
		SET items = $1, version = version + 1, updated_at = $2
		WHERE session_id = $3
		RETURNING version
	`
	purgeCartsQuery = `DELETE FROM carts WHERE updated_at < $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, opts: database.DefaultTxOptions(), now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*Cart, error) {
	var (
		c   Cart
		raw []byte
	)
	if err := row.Scan(&c.SessionID, &raw, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Items = []LineItem{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Items); err != nil {
			return nil, fmt.Errorf("decode cart items: %w", err)
		}
	}
	return &c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := scanCart(r.db.QueryRowContext(ctx, getCartQuery, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// Mutate serializes writers on the cart row with SELECT ... FOR UPDATE and
// retries the whole transaction on serialization or deadlock failures.
func (r *PostgresRepository) Mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (*Cart, error) {
	var result *Cart
	err := database.WithRetry(ctx, r.db, r.opts, func(tx *sql.Tx) error {
		now := r.now().UTC()
		if _, err := tx.ExecContext(ctx, ensureCartQuery, sessionID, now); err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}

		c, err := scanCart(tx.QueryRowContext(ctx, lockCartQuery, sessionID))
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}

		items, err := json.Marshal(c.Items)
		if err != nil {
			return fmt.Errorf("encode cart items: %w", err)
		}
		if err := tx.QueryRowContext(ctx, updateCartQuery, items, now, sessionID).Scan(&c.Version); err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		c.UpdatedAt = now
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeCartsQuery, before)
	if err != nil {
		return 0, fmt.Errorf("purge carts: %w", err)
	}
	return res.RowsAffected()
}
