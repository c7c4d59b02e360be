package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loyalty/rewards-service/internal/domain"
)

// PostgreSQL error codes the store translates into domain errors.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgUndefinedTable       = "42P01"
)

func isUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// mapError converts driver errors into the domain's error kinds. Errors that are already
// domain errors, or that carry no special meaning, pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", domain.ErrTransactionConflict, pgErr.Message)
	case pgUniqueViolation:
		// Two writers raced to create the same props row; the loser sees the partial unique index.
		return fmt.Errorf("%w: %s (%s)", domain.ErrTransactionConflict, pgErr.Message, pgErr.ConstraintName)
	}
	return err
}
