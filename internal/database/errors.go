package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassUniqueViolation
)

// ErrUnavailable marks storage failures surfaced to callers that only care
// whether the store answered.
var ErrUnavailable = errors.New("storage unavailable")

// SQLState extracts the Postgres error code from either driver.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func ClassifyError(err error) ErrorClass {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	switch SQLState(err) {
	case "40001":
		return ErrorClassSerialization
	case "40P01":
		return ErrorClassDeadlock
	case "55P03":
		return ErrorClassTransient
	case "23505":
		return ErrorClassUniqueViolation
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

func IsUniqueViolation(err error) bool {
	return ClassifyError(err) == ErrorClassUniqueViolation
}
