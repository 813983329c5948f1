package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

type WalletAggregateDeps struct {
	Base BaseDeps

	Wallets  repos.WalletRepo
	WalletTx repos.WalletTransactionRepo
}

type walletAggregate struct {
	deps   WalletAggregateDeps
	ledger ledger
}

func NewWalletAggregate(deps WalletAggregateDeps) domainagg.WalletAggregate {
	deps.Base = deps.Base.withDefaults()
	return &walletAggregate{
		deps:   deps,
		ledger: ledger{base: deps.Base, wallets: deps.Wallets, txs: deps.WalletTx},
	}
}

func (a *walletAggregate) Contract() domainagg.Contract {
	return domainagg.WalletAggregateContract
}

func (a *walletAggregate) Ensure(ctx context.Context, in domainagg.EnsureWalletInput) (domainagg.WalletResult, error) {
	const op = "Payments.Wallet.Ensure"
	var out domainagg.WalletResult
	if in.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "user_id is required", nil)
	}
	if !a.ledger.ready() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "wallet aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		w, err := a.ledger.lockOrOpen(dbc, in.UserID, in.Currency)
		if err != nil {
			return err
		}
		out = domainagg.WalletResult{Wallet: *w}
		return nil
	})
	return out, err
}

func (a *walletAggregate) TopUp(ctx context.Context, in domainagg.WalletCreditInput) (domainagg.WalletResult, error) {
	const op = "Payments.Wallet.TopUp"
	if !in.Amount.IsPositive() {
		return domainagg.WalletResult{}, domainagg.NewError(domainagg.CodeValidation, op, "amount must be positive", nil)
	}
	return a.move(ctx, op, in.UserID, in.Amount.Currency, func(w *types.Wallet) (*types.WalletTransaction, error) {
		return w.Credit(in.Amount, reasonOr(in.Reason, "wallet top-up"), wallet.Reference{Type: wallet.RefTopUp, ID: in.ActorID})
	})
}

// Adjust credits positive amounts and debits negative ones.
func (a *walletAggregate) Adjust(ctx context.Context, in domainagg.WalletAdjustInput) (domainagg.WalletResult, error) {
	const op = "Payments.Wallet.Adjust"
	if in.AdminID == uuid.Nil {
		return domainagg.WalletResult{}, forbidden(op, "wallet adjustments require an admin")
	}
	if in.Amount.IsZero() {
		return domainagg.WalletResult{}, domainagg.NewError(domainagg.CodeValidation, op, "adjustment amount must be non-zero", nil)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domainagg.WalletResult{}, domainagg.NewError(domainagg.CodeValidation, op, "adjustment reason is required", nil)
	}
	ref := wallet.Reference{Type: wallet.RefAdjustment, ID: in.AdminID}
	return a.move(ctx, op, in.UserID, in.Amount.Currency, func(w *types.Wallet) (*types.WalletTransaction, error) {
		if in.Amount.IsNegative() {
			return w.Debit(in.Amount.Neg(), in.Reason, ref)
		}
		return w.Credit(in.Amount, in.Reason, ref)
	})
}

func (a *walletAggregate) move(ctx context.Context, op string, userID uuid.UUID, currency string, fn func(*types.Wallet) (*types.WalletTransaction, error)) (domainagg.WalletResult, error) {
	var out domainagg.WalletResult
	if userID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "user_id is required", nil)
	}
	if !a.ledger.ready() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "wallet aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		w, err := a.ledger.lockOrOpen(dbc, userID, currency)
		if err != nil {
			return err
		}
		tx, err := fn(w)
		if err != nil {
			return err
		}
		if err := a.ledger.save(dbc, w, tx); err != nil {
			return err
		}
		out = domainagg.WalletResult{Wallet: *w, Transaction: tx}
		return nil
	})
	return out, err
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}
