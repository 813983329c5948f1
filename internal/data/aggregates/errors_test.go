package aggregates

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	if !errors.Is(err, errs.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict kind, got %v", err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_DomainKinds(t *testing.T) {
	cases := []struct {
		kind error
		want domainagg.ErrorCode
	}{
		{errs.ErrCurrencyMismatch, domainagg.CodeValidation},
		{errs.ErrDivideByZero, domainagg.CodeValidation},
		{errs.ErrInsufficientFunds, domainagg.CodePreconditionFailed},
		{errs.ErrInvalidStateTransition, domainagg.CodeInvariantViolation},
		{errs.ErrInvalidOperation, domainagg.CodeInvariantViolation},
		{errs.ErrNotFound, domainagg.CodeNotFound},
		{errs.ErrUnauthorized, domainagg.CodeForbidden},
		{errs.ErrConcurrencyConflict, domainagg.CodeConflict},
	}
	for _, tc := range cases {
		err := MapError("op", errs.New(tc.kind, "detail"))
		if !domainagg.IsCode(err, tc.want) {
			t.Fatalf("%v: want code %s got %q", tc.kind, tc.want, domainagg.CodeOf(err))
		}
		if !errors.Is(err, tc.kind) {
			t.Fatalf("%v: kind lost after mapping", tc.kind)
		}
	}
}

func TestMapError_Postgres(t *testing.T) {
	cases := map[string]domainagg.ErrorCode{
		"23505": domainagg.CodeConflict,
		"23503": domainagg.CodePreconditionFailed,
		"40001": domainagg.CodeRetryable,
		"40P01": domainagg.CodeRetryable,
		"55P03": domainagg.CodeRetryable,
	}
	for code, want := range cases {
		err := MapError("op", &pgconn.PgError{Code: code})
		if !domainagg.IsCode(err, want) {
			t.Fatalf("pg %s: want %s got %q", code, want, domainagg.CodeOf(err))
		}
	}
}

func TestMapError_SQLiteMessages(t *testing.T) {
	if err := MapError("op", errors.New("UNIQUE constraint failed: withdrawal.reference")); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("unique: got %q", domainagg.CodeOf(err))
	}
	if err := MapError("op", errors.New("database is locked")); !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("locked: got %q", domainagg.CodeOf(err))
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
