package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repotest "github.com/yungbote/escrow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := RequireCASSuccess(false, "stale")
	if err == nil || !errors.Is(err, ErrConflict) || !errors.Is(err, errs.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestBumpValidatesInput(t *testing.T) {
	g := NewCASGuard(nil)
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := g.Bump(dbc, "wallet", uuid.New(), 0, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing db: want validation, got %v", err)
	}
	if err := g.Bump(dbc, "", uuid.New(), 0, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing table: want validation, got %v", err)
	}
	if err := g.Bump(dbc, "wallet", uuid.New(), -1, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative version: want validation, got %v", err)
	}
}

func TestBumpRejectsStaleVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	w, err := wallet.New(uuid.New(), "PKR")
	if err != nil {
		t.Fatalf("wallet.New: %v", err)
	}
	if err := tx.Create(w).Error; err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	g := NewCASGuard(nil)
	set := map[string]any{"balance_amount": decimal.RequireFromString("50")}
	if err := g.Bump(dbc, w.TableName(), w.ID, w.Version, set); err != nil {
		t.Fatalf("first bump: %v", err)
	}
	if err := g.Bump(dbc, w.TableName(), w.ID, w.Version, set); !errors.Is(err, errs.ErrConcurrencyConflict) {
		t.Fatalf("stale bump: want conflict, got %v", err)
	}

	var got types.Wallet
	if err := tx.First(&got, "id = ?", w.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Version != w.Version+1 {
		t.Fatalf("version: want=%d got=%d", w.Version+1, got.Version)
	}
}
