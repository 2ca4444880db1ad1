package cart

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cartColumns = []string{"session_id", "items", "version", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresGet_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM carts").WithArgs("s").WillReturnRows(sqlmock.NewRows(cartColumns))

	_, err := repo.Get(context.Background(), "s")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet_DecodesItems(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	mock.ExpectQuery("FROM carts").WithArgs("s").WillReturnRows(
		sqlmock.NewRows(cartColumns).AddRow("s", []byte(`[{"product_id":"2","quantity":2,"price_at_time":499}]`), 3, now, now))

	c, err := repo.Get(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, int64(3), c.Version)
}

func TestPostgresMutate_LocksAndUpdates(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO carts")).WithArgs("s", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WithArgs("s").WillReturnRows(
		sqlmock.NewRows(cartColumns).AddRow("s", []byte(`[{"product_id":"2","quantity":1,"price_at_time":499}]`), 1, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE carts")).
		WithArgs([]byte(`[{"product_id":"2","quantity":2,"price_at_time":499}]`), sqlmock.AnyArg(), "s").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectCommit()

	c, err := repo.Mutate(context.Background(), "s", func(c *Cart) error {
		c.Add("2", 1, 999)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, int64(2), c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMutate_RollsBackOnCallbackError(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO carts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(cartColumns).AddRow("s", []byte(`[]`), 0, now, now))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "s", func(c *Cart) error {
		if !c.SetQuantity("2", 4) {
			return ErrItemNotInCart
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrItemNotInCart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMutate_RetriesSerializationFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO carts")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO carts")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(cartColumns).AddRow("s", []byte(`[]`), 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE carts")).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectCommit()

	c, err := repo.Mutate(context.Background(), "s", func(c *Cart) error {
		c.Add("3", 1, 499)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMutate_PermanentErrorNotRetried(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("relation does not exist")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO carts")).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "s", func(*Cart) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
