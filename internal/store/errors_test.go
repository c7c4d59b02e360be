package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loyalty/rewards-service/internal/domain"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: pgx.ErrNoRows, want: domain.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("lookup: %w", pgx.ErrNoRows), want: domain.ErrNotFound},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: domain.ErrTransactionConflict},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: domain.ErrTransactionConflict},
		{
			name: "unique violation on props index",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "campaign_props_point_collector_uniq"},
			want: domain.ErrTransactionConflict,
		},
		{name: "domain error passes through", err: domain.ErrAlreadyScanned, want: domain.ErrAlreadyScanned},
		{name: "unrelated error passes through", err: plain, want: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMapErrorLeavesCheckViolationUntouched(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "campaigns_code_counters_balanced"}
	got := mapError(pgErr)
	if domain.IsRetryable(got) {
		t.Fatalf("check violation must not be retryable, got %v", got)
	}
	var asPg *pgconn.PgError
	if !errors.As(got, &asPg) || asPg.ConstraintName != "campaigns_code_counters_balanced" {
		t.Fatalf("expected original pg error, got %v", got)
	}
}

func TestIsUndefinedTableError(t *testing.T) {
	if !isUndefinedTableError(fmt.Errorf("sweep: %w", &pgconn.PgError{Code: "42P01"})) {
		t.Fatal("expected wrapped 42P01 to be detected")
	}
	if isUndefinedTableError(errors.New("42P01")) {
		t.Fatal("plain error text must not be treated as a pg error")
	}
}
