package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
)

func PKR(v string) money.Money { return money.MustParse(v, "PKR") }

// SeedWallet creates an active PKR wallet holding balance.
func SeedWallet(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, balance string) *types.Wallet {
	tb.Helper()
	return SeedFrozenWallet(tb, ctx, tx, userID, balance, "0")
}

// SeedFrozenWallet creates an active PKR wallet with part of its balance frozen.
func SeedFrozenWallet(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, balance, frozen string) *types.Wallet {
	tb.Helper()
	w, err := wallet.New(userID, "PKR")
	if err != nil {
		tb.Fatalf("new wallet: %v", err)
	}
	w.Balance = PKR(balance)
	w.FrozenBalance = PKR(frozen)
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed wallet: %v", err)
	}
	return w
}

// SeedOrder creates an escrow and its order in the given statuses. Orders
// past payment get a matching frozen amount.
func SeedOrder(tb testing.TB, ctx context.Context, tx *gorm.DB, buyerID, sellerID uuid.UUID, amount string, status order.Status, escrowStatus escrow.Status) (*types.Order, *types.Escrow) {
	tb.Helper()
	e, err := escrow.New(PKR(amount), buyerID, sellerID, "seeded", "")
	if err != nil {
		tb.Fatalf("new escrow: %v", err)
	}
	e.Status = escrowStatus
	o, err := order.New(order.NewParams{
		BuyerID:  buyerID,
		SellerID: sellerID,
		EscrowID: e.ID,
		Title:    "seeded",
		Amount:   PKR(amount),
	})
	if err != nil {
		tb.Fatalf("new order: %v", err)
	}
	o.Status = status
	switch status {
	case order.StatusCreated, order.StatusPaymentPending, order.StatusCancelled, order.StatusRejected,
		order.StatusCompleted, order.StatusDisputeResolved:
	default:
		now := time.Now().UTC()
		o.FrozenAmount = PKR(amount)
		o.IsAmountFrozen = true
		o.PaymentDate = &now
	}
	if err := e.SetOrderID(o.ID); err != nil {
		tb.Fatalf("link escrow: %v", err)
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed escrow: %v", err)
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed order: %v", err)
	}
	return o, e
}
