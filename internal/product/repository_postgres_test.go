package product

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var productRowColumns = []string{"id", "slug", "title", "image", "original_price", "current_price", "description", "long_description", "features", "created_at", "updated_at"}

func TestPostgresList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(productRowColumns).
		AddRow("prod-1", "a", "A", "", 1499, 499, "d", "ld", "{One,Two}", now, now).
		AddRow("prod-2", "b", "B", "", 999, 999, "d", "ld", "{}", now, now)
	mock.ExpectQuery("FROM products").WillReturnRows(rows)

	all, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}
	if len(all[0].Features) != 2 || all[0].Features[1] != "Two" {
		t.Fatalf("unexpected features %+v", all[0].Features)
	}
	if all[1].Features == nil {
		t.Fatalf("expected empty features slice, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetBySlug_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("WHERE slug = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(productRowColumns))

	if _, err := repo.GetBySlug(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreate_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Create(context.Background(), Product{ID: "x", Slug: "dup", Title: "Dup", OriginalPrice: 10, CurrentPrice: 5})
	if !errors.Is(err, ErrSlugExists) {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresReset_RunsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM products").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.Reset(context.Background(), []Product{{ID: "prod-1", Slug: "a", Title: "A", OriginalPrice: 10, CurrentPrice: 5}})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
