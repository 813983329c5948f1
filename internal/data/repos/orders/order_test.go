package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

func TestOrderRepoListAndExpiry(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewOrderRepo(db, testutil.Logger(t))

	buyer, seller := uuid.New(), uuid.New()
	now := time.Now().UTC()

	expired, _ := testutil.SeedOrder(t, ctx, tx, buyer, seller, "100", order.StatusDeliveredPendingDecision, escrow.StatusFunded)
	past := now.Add(-time.Hour)
	expired.DeliveryConfirmationExpiry = &past
	if ok, err := repo.UpdateVersioned(dbc, expired); err != nil || !ok {
		t.Fatalf("UpdateVersioned: ok=%v err=%v", ok, err)
	}

	open, _ := testutil.SeedOrder(t, ctx, tx, buyer, seller, "100", order.StatusDeliveredPendingDecision, escrow.StatusFunded)
	future := now.Add(time.Hour)
	open.DeliveryConfirmationExpiry = &future
	if ok, err := repo.UpdateVersioned(dbc, open); err != nil || !ok {
		t.Fatalf("UpdateVersioned: ok=%v err=%v", ok, err)
	}
	testutil.SeedOrder(t, ctx, tx, uuid.New(), seller, "20", order.StatusCreated, escrow.StatusCreated)

	ids, err := repo.ListExpiredPendingDecision(dbc, now, 10)
	if err != nil {
		t.Fatalf("ListExpiredPendingDecision: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("expired ids: %v", ids)
	}

	asBuyer, total, err := repo.List(dbc, OrderListFilter{UserID: buyer, Role: "buyer"})
	if err != nil || total != 2 || len(asBuyer) != 2 {
		t.Fatalf("List buyer: total=%d rows=%d err=%v", total, len(asBuyer), err)
	}
	asSeller, total, err := repo.List(dbc, OrderListFilter{UserID: seller, Statuses: []order.Status{order.StatusCreated}})
	if err != nil || total != 1 || len(asSeller) != 1 {
		t.Fatalf("List seller created: total=%d rows=%d err=%v", total, len(asSeller), err)
	}
}

func TestOrderRepoStaleWriteLoses(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewOrderRepo(db, testutil.Logger(t))

	o, _ := testutil.SeedOrder(t, ctx, tx, uuid.New(), uuid.New(), "50", order.StatusPaymentConfirmed, escrow.StatusFunded)
	a, _ := repo.LockByID(dbc, o.ID)
	b, _ := repo.GetByID(dbc, o.ID)

	if err := a.MarkAsShipped(order.ShipmentDetails{Courier: "TCS"}, time.Now().UTC()); err != nil {
		t.Fatalf("MarkAsShipped: %v", err)
	}
	if ok, err := repo.UpdateVersioned(dbc, a); err != nil || !ok {
		t.Fatalf("first write: ok=%v err=%v", ok, err)
	}
	if err := b.CancelOrder("late", time.Now().UTC()); err != nil {
		t.Fatalf("CancelOrder on stale copy: %v", err)
	}
	if ok, err := repo.UpdateVersioned(dbc, b); err != nil || ok {
		t.Fatalf("stale write: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(dbc, o.ID)
	if got.Status != order.StatusShipped || !got.IsAmountFrozen || *got.Courier != "TCS" {
		t.Fatalf("stored order: %+v", got)
	}
}

func TestDisputeRepoActiveByOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDisputeRepo(db, testutil.Logger(t))

	orderID := uuid.New()
	d, err := dispute.New(orderID, uuid.New(), "damaged", "", "", "PKR")
	if err != nil {
		t.Fatalf("dispute.New: %v", err)
	}
	if _, err := repo.Create(dbc, []*types.Dispute{d}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	active, err := repo.GetActiveByOrderID(dbc, orderID)
	if err != nil || active == nil || active.ID != d.ID {
		t.Fatalf("GetActiveByOrderID: %v %v", active, err)
	}

	admin := uuid.New()
	if err := active.Resolve(admin, dispute.ResolutionInFavorOfBuyer, "", testutil.PKR("0"), testutil.PKR("10"), time.Now().UTC()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok, err := repo.UpdateVersioned(dbc, active); err != nil || !ok {
		t.Fatalf("UpdateVersioned: ok=%v err=%v", ok, err)
	}
	none, err := repo.GetActiveByOrderID(dbc, orderID)
	if err != nil || none != nil {
		t.Fatalf("resolved dispute still active: %v %v", none, err)
	}
	all, err := repo.ListByOrderID(dbc, orderID)
	if err != nil || len(all) != 1 || *all[0].ResolvedByID != admin {
		t.Fatalf("ListByOrderID: %v %v", all, err)
	}
}
