package aggregates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/domain/withdrawal"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

type WithdrawalAggregateDeps struct {
	Base BaseDeps

	Wallets     repos.WalletRepo
	WalletTx    repos.WalletTransactionRepo
	Withdrawals repos.WithdrawalRepo
}

type withdrawalAggregate struct {
	deps   WithdrawalAggregateDeps
	ledger ledger
}

func NewWithdrawalAggregate(deps WithdrawalAggregateDeps) domainagg.WithdrawalAggregate {
	deps.Base = deps.Base.withDefaults()
	return &withdrawalAggregate{
		deps:   deps,
		ledger: ledger{base: deps.Base, wallets: deps.Wallets, txs: deps.WalletTx},
	}
}

func (a *withdrawalAggregate) Contract() domainagg.Contract {
	return domainagg.WithdrawalAggregateContract
}

func (a *withdrawalAggregate) configured() bool {
	return a.ledger.ready() && a.deps.Withdrawals != nil
}

func (a *withdrawalAggregate) Request(ctx context.Context, in domainagg.RequestWithdrawalInput) (domainagg.WithdrawalResult, error) {
	const op = "Payments.Withdrawal.Request"
	var out domainagg.WithdrawalResult
	if in.SellerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "seller_id is required", nil)
	}
	if !in.Amount.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "amount must be positive", nil)
	}
	if _, err := withdrawal.ParseChannel(string(in.Channel)); err != nil {
		return out, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "withdrawal aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		w, err := a.ledger.lock(dbc, in.SellerID)
		if err != nil {
			return err
		}
		if w == nil {
			return errs.New(errs.ErrInsufficientFunds, "seller %s has no wallet to withdraw from", in.SellerID)
		}
		now := a.deps.Base.now()
		wd, err := withdrawal.New(in.SellerID, w.ID, in.Amount, in.Channel, in.Notes, now)
		if err != nil {
			return err
		}
		debit, err := w.Debit(in.Amount, "withdrawal "+wd.Reference, wallet.Reference{Type: wallet.RefWithdrawal, ID: wd.ID})
		if err != nil {
			return err
		}
		if _, err := a.deps.Withdrawals.Create(dbc, []*types.Withdrawal{wd}); err != nil {
			return err
		}
		if err := a.ledger.save(dbc, w, debit); err != nil {
			return err
		}
		out = domainagg.WithdrawalResult{Withdrawal: *wd, Wallet: *w}
		return nil
	})
	return out, err
}

func (a *withdrawalAggregate) SetPendingProvider(ctx context.Context, in domainagg.WithdrawalProviderInput) (domainagg.WithdrawalResult, error) {
	const op = "Payments.Withdrawal.SetPendingProvider"
	return a.advance(ctx, op, in.WithdrawalID, func(wd *types.Withdrawal) error {
		return wd.SetPendingProvider(in.ChannelReference)
	})
}

func (a *withdrawalAggregate) Settle(ctx context.Context, in domainagg.WithdrawalProviderInput) (domainagg.WithdrawalResult, error) {
	const op = "Payments.Withdrawal.Settle"
	return a.advance(ctx, op, in.WithdrawalID, func(wd *types.Withdrawal) error {
		return wd.SetSettled(in.ChannelReference, a.deps.Base.now())
	})
}

// Fail is safe to retry: a withdrawal left failed but uncompensated is
// compensated on the next call, and a compensated one is rejected.
func (a *withdrawalAggregate) Fail(ctx context.Context, in domainagg.FailWithdrawalInput) (domainagg.WithdrawalResult, error) {
	const op = "Payments.Withdrawal.Fail"
	var out domainagg.WithdrawalResult
	if in.WithdrawalID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "withdrawal_id is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "withdrawal aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		wd, err := a.deps.Withdrawals.LockByID(dbc, in.WithdrawalID)
		if err != nil {
			return err
		}
		if err := requireFound(wd, op, "withdrawal", in.WithdrawalID); err != nil {
			return err
		}
		now := a.deps.Base.now()
		if !wd.NeedsCompensation() {
			if err := wd.SetFailed(in.Reason, now); err != nil {
				return err
			}
		}
		w, err := a.deps.Wallets.LockByID(dbc, wd.WalletID)
		if err != nil {
			return err
		}
		if err := requireFound(w, op, "wallet", wd.WalletID); err != nil {
			return err
		}
		credit, err := w.Credit(wd.Amount, "withdrawal refund "+wd.Reference, wallet.Reference{Type: wallet.RefWithdrawal, ID: wd.ID})
		if err != nil {
			return err
		}
		if err := wd.MarkCompensated(now); err != nil {
			return err
		}
		if err := a.ledger.save(dbc, w, credit); err != nil {
			return err
		}
		if err := saveWithdrawal(dbc, a.deps.Withdrawals, wd); err != nil {
			return err
		}
		out = domainagg.WithdrawalResult{Withdrawal: *wd, Wallet: *w, Compensated: true}
		return nil
	})
	return out, err
}

func (a *withdrawalAggregate) advance(ctx context.Context, op string, id uuid.UUID, fn func(*types.Withdrawal) error) (domainagg.WithdrawalResult, error) {
	var out domainagg.WithdrawalResult
	if id == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "withdrawal_id is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "withdrawal aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		wd, err := a.deps.Withdrawals.LockByID(dbc, id)
		if err != nil {
			return err
		}
		if err := requireFound(wd, op, "withdrawal", id); err != nil {
			return err
		}
		if err := fn(wd); err != nil {
			return err
		}
		if err := saveWithdrawal(dbc, a.deps.Withdrawals, wd); err != nil {
			return err
		}
		w, err := a.deps.Wallets.GetByID(dbc, wd.WalletID)
		if err != nil {
			return err
		}
		out = domainagg.WithdrawalResult{Withdrawal: *wd}
		if w != nil {
			out.Wallet = *w
		}
		return nil
	})
	return out, err
}

func saveWithdrawal(dbc dbctx.Context, r repos.WithdrawalRepo, wd *types.Withdrawal) error {
	ok, err := r.UpdateVersioned(dbc, wd)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("withdrawal %s changed concurrently", wd.ID))
}
