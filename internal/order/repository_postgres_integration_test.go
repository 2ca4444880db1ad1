//go:build integration

package order

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wichananm65/ebook-storefront/internal/database"
)

func setupPostgresRepo(t *testing.T) *PostgresRepository {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.MigrateUp(db, "../../migrations"))

	return NewPostgresRepository(db)
}

func integrationOrder(number, email string, status Status, at time.Time) Order {
	return Order{
		OrderNumber:      number,
		SessionID:        "session-it",
		CustomerName:     "Asha Rao",
		CustomerEmail:    email,
		CustomerPhone:    "9876543210",
		City:             "Pune",
		Items:            []Item{{ProductID: "prod-2", Title: "Software System Design", Quantity: 3, PriceAtTime: 499, OriginalPrice: 1499}},
		SubtotalOriginal: 4497,
		Discount:         3000,
		TotalAmount:      1497,
		Status:           status,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.Create(ctx, integrationOrder("ORD-IT-1", "Asha@Example.com", StatusCreated, now))
	require.NoError(t, err)

	_, err = repo.Create(ctx, integrationOrder("ORD-IT-1", "asha@example.com", StatusCreated, now))
	assert.ErrorIs(t, err, ErrDuplicateNumber)

	got, err := repo.GetByNumber(ctx, "ORD-IT-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1497), got.TotalAmount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(499), got.Items[0].PriceAtTime)
	assert.Nil(t, got.PaidAt)

	byEmail, err := repo.ListByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	_, err = repo.GetByNumber(ctx, "ORD-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_UpdateSerializesWriters(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Create(ctx, integrationOrder("ORD-IT-2", "ravi@example.com", StatusCreated, now))
	require.NoError(t, err)

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "ORD-IT-2", func(o *Order) error {
				if o.GatewayOrderID == "" {
					created.Add(1)
					o.GatewayOrderID = fmt.Sprintf("order_gw%d", i)
					o.Status = StatusPaymentPending
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	got, err := repo.GetByNumber(ctx, "ORD-IT-2")
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentPending, got.Status)
	assert.NotEmpty(t, got.GatewayOrderID)
}

func TestPostgresRepository_RecentPaidAndStale(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, status := range []Status{StatusPaid, StatusPaymentPending, StatusPaid} {
		o := integrationOrder(fmt.Sprintf("ORD-IT-%d", 10+i), "x@example.com", status, now.Add(-48*time.Hour))
		if status == StatusPaid {
			paidAt := now.Add(time.Duration(-i) * time.Minute)
			o.PaidAt = &paidAt
		}
		_, err := repo.Create(ctx, o)
		require.NoError(t, err)
	}

	paid, err := repo.ListRecentPaid(ctx, 10)
	require.NoError(t, err)
	require.Len(t, paid, 2)
	assert.Equal(t, "ORD-IT-10", paid[0].OrderNumber)

	stale, err := repo.ListStale(ctx, StatusPaymentPending, now.Add(-24*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "ORD-IT-11", stale[0].OrderNumber)
}
