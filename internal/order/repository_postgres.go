package order

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
}

const (
	orderColumns = `order_number, session_id, customer_name, customer_email, customer_phone,
		billing_address, city, state, pincode, items, subtotal_original, discount, total_amount,
		status, gateway_order_id, gateway_payment_id, paid_at, created_at, updated_at`

	insertOrderQuery = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`
	getOrderQuery = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE order_number = $1
	`
	lockOrderQuery = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE order_number = $1
		FOR UPDATE
	`
	updateOrderQuery = `
		UPDATE orders
		SET status = $1, gateway_order_id = $2, gateway_payment_id = $3, paid_at = $4, updated_at = $5
		WHERE order_number = $6
	`
	listByEmailQuery = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE lower(customer_email) = lower($1)
		ORDER BY created_at DESC
	`
	listRecentPaidQuery = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'paid' AND paid_at IS NOT NULL
		ORDER BY paid_at DESC
		LIMIT $1
	`
	listStaleQuery = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, opts: database.DefaultTxOptions()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o      Order
		items  []byte
		status string
		paidAt sql.NullTime
	)
	err := row.Scan(
		&o.OrderNumber, &o.SessionID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.BillingAddress, &o.City, &o.State, &o.Pincode, &items, &o.SubtotalOriginal, &o.Discount, &o.TotalAmount,
		&status, &o.GatewayOrderID, &o.GatewayPaymentID, &paidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	o.Items = []Item{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}
	return o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode order items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertOrderQuery,
		o.OrderNumber, o.SessionID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.BillingAddress, o.City, o.State, o.Pincode, items, o.SubtotalOriginal, o.Discount, o.TotalAmount,
		string(o.Status), o.GatewayOrderID, o.GatewayPaymentID, nullTime(o.PaidAt), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Order{}, ErrDuplicateNumber
		}
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, getOrderQuery, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	return r.list(ctx, listByEmailQuery, email)
}

func (r *PostgresRepository) ListRecentPaid(ctx context.Context, limit int) ([]Order, error) {
	return r.list(ctx, listRecentPaidQuery, limit)
}

func (r *PostgresRepository) ListStale(ctx context.Context, status Status, before time.Time, limit int) ([]Order, error) {
	return r.list(ctx, listStaleQuery, string(status), before, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Update holds the row lock for the duration of fn, so concurrent payment
// callbacks for one order are applied one after another.
func (r *PostgresRepository) Update(ctx context.Context, number string, fn func(*Order) error) (Order, error) {
	var result Order
	err := database.WithRetry(ctx, r.db, r.opts, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx, lockOrderQuery, number))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if err := fn(&o); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, updateOrderQuery,
			string(o.Status), o.GatewayOrderID, o.GatewayPaymentID, nullTime(o.PaidAt), o.UpdatedAt, number)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		result = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return result, nil
}
