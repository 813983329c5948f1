package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

var WalletAggregateContract = Contract{
	Name:      "Payments.WalletAggregate",
	Writes:    []string{"wallet", "wallet_transaction"},
	LockOrder: []string{"wallet"},
	Notes:     "Wallet provisioning and admin balance movements with ledger rows.",
}

// WalletAggregate owns direct wallet writes that are not part of an order.
type WalletAggregate interface {
	Aggregate

	// Ensure returns the user's wallet, creating an empty one when missing.
	Ensure(ctx context.Context, in EnsureWalletInput) (WalletResult, error)

	// TopUp credits the wallet.
	TopUp(ctx context.Context, in WalletCreditInput) (WalletResult, error)

	// Adjust applies a signed correction; negative amounts debit.
	Adjust(ctx context.Context, in WalletAdjustInput) (WalletResult, error)
}

type EnsureWalletInput struct {
	UserID   uuid.UUID
	Currency string
}

type WalletCreditInput struct {
	UserID  uuid.UUID
	ActorID uuid.UUID
	Amount  money.Money
	Reason  string
}

type WalletAdjustInput struct {
	UserID  uuid.UUID
	AdminID uuid.UUID
	Amount  money.Money
	Reason  string
}

type WalletResult struct {
	Wallet      types.Wallet
	Transaction *types.WalletTransaction
}
