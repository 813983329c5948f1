package aggregates

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

// ledger loads and persists wallets together with their transaction rows.
type ledger struct {
	base    BaseDeps
	wallets repos.WalletRepo
	txs     repos.WalletTransactionRepo
}

func (l ledger) ready() bool { return l.wallets != nil && l.txs != nil }

// lock returns the user's wallet under a row lock, or nil when none exists.
func (l ledger) lock(dbc dbctx.Context, userID uuid.UUID) (*types.Wallet, error) {
	return l.wallets.LockByUserID(dbc, userID)
}

// lockOrOpen returns the user's locked wallet, opening an empty one in currency when missing.
func (l ledger) lockOrOpen(dbc dbctx.Context, userID uuid.UUID, currency string) (*types.Wallet, error) {
	w, err := l.wallets.LockByUserID(dbc, userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}
	w, err = wallet.New(userID, currency)
	if err != nil {
		return nil, err
	}
	if _, err := l.wallets.Create(dbc, []*types.Wallet{w}); err != nil {
		return nil, err
	}
	return w, nil
}

// lockPair locks two users' wallets in a stable order so concurrent
// settlements between the same parties cannot deadlock.
func (l ledger) lockPair(dbc dbctx.Context, buyerID, sellerID uuid.UUID, currency string) (buyer, seller *types.Wallet, err error) {
	first, second := buyerID, sellerID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	a, err := l.lockOrOpen(dbc, first, currency)
	if err != nil {
		return nil, nil, err
	}
	b, err := l.lockOrOpen(dbc, second, currency)
	if err != nil {
		return nil, nil, err
	}
	if first == buyerID {
		return a, b, nil
	}
	return b, a, nil
}

// save writes the wallet balances with a version CAS and appends moves.
func (l ledger) save(dbc dbctx.Context, w *types.Wallet, moves ...*types.WalletTransaction) error {
	if err := w.CheckInvariants(); err != nil {
		return err
	}
	err := l.base.CASGuard.Bump(dbc, w.TableName(), w.ID, w.Version, map[string]any{
		"balance_amount": w.Balance.Amount,
		"frozen_amount":  w.FrozenBalance.Amount,
		"is_active":      w.IsActive,
		"updated_at":     l.base.now(),
	})
	if err != nil {
		return err
	}
	w.Version++
	if len(moves) == 0 {
		return nil
	}
	_, err = l.txs.Create(dbc, moves)
	return err
}

func orderRef(id uuid.UUID) wallet.Reference {
	return wallet.Reference{Type: wallet.RefOrder, ID: id}
}

func requireFound[T any](row *T, op, what string, id uuid.UUID) error {
	if row == nil {
		return notFound(op, what, id)
	}
	return nil
}

func missingWallet(userID uuid.UUID) error {
	return errs.New(errs.ErrInvalidOperation, "wallet for user %s does not exist", userID)
}
