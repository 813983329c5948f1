package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	repotest "github.com/yungbote/escrow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

type harness struct {
	ctx context.Context
	tx  *gorm.DB
	dbc dbctx.Context
	set repos.Set
	now time.Time

	settlement  domainagg.SettlementAggregate
	disputes    domainagg.DisputeAggregate
	withdrawals domainagg.WithdrawalAggregate
	wallets     domainagg.WalletAggregate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	h := &harness{
		ctx: context.Background(),
		tx:  tx,
		set: repos.NewSet(tx, repotest.Logger(t)),
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.dbc = dbctx.Context{Ctx: h.ctx, Tx: tx}
	base := BaseDeps{
		DB:       tx,
		Runner:   NewGormTxRunner(tx),
		CASGuard: NewCASGuard(tx),
		Clock:    func() time.Time { return h.now },
	}
	h.settlement = NewSettlementAggregate(SettlementAggregateDeps{
		Base:           base,
		Wallets:        h.set.Wallets,
		WalletTx:       h.set.WalletTx,
		Orders:         h.set.Orders,
		Escrows:        h.set.Escrows,
		Disputes:       h.set.Disputes,
		DecisionWindow: 48 * time.Hour,
	})
	h.disputes = NewDisputeAggregate(DisputeAggregateDeps{
		Base:     base,
		Wallets:  h.set.Wallets,
		WalletTx: h.set.WalletTx,
		Orders:   h.set.Orders,
		Escrows:  h.set.Escrows,
		Disputes: h.set.Disputes,
	})
	h.withdrawals = NewWithdrawalAggregate(WithdrawalAggregateDeps{
		Base:        base,
		Wallets:     h.set.Wallets,
		WalletTx:    h.set.WalletTx,
		Withdrawals: h.set.Withdrawals,
	})
	h.wallets = NewWalletAggregate(WalletAggregateDeps{
		Base:     base,
		Wallets:  h.set.Wallets,
		WalletTx: h.set.WalletTx,
	})
	return h
}

func (h *harness) wallet(t *testing.T, userID uuid.UUID) *types.Wallet {
	t.Helper()
	w, err := h.set.Wallets.GetByUserID(h.dbc, userID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if w == nil {
		t.Fatalf("wallet for %s missing", userID)
	}
	return w
}

func (h *harness) assertBalances(t *testing.T, userID uuid.UUID, balance, frozen string) {
	t.Helper()
	w := h.wallet(t, userID)
	if !w.Balance.Equals(repotest.PKR(balance)) || !w.FrozenBalance.Equals(repotest.PKR(frozen)) {
		t.Fatalf("wallet %s: want balance=%s frozen=%s got balance=%s frozen=%s", userID, balance, frozen, w.Balance, w.FrozenBalance)
	}
}

// paidOrder creates and pays a 400 PKR order from a buyer holding 1000.
func (h *harness) paidOrder(t *testing.T) (buyerID, sellerID uuid.UUID, res domainagg.OrderResult) {
	t.Helper()
	buyerID, sellerID = uuid.New(), uuid.New()
	repotest.SeedWallet(t, h.ctx, h.tx, buyerID, "1000")
	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{
		BuyerID:  buyerID,
		SellerID: sellerID,
		Title:    "camera",
		Amount:   repotest.PKR("400"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	res, err = h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: created.Order.ID, ActorID: buyerID})
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	return buyerID, sellerID, res
}

func (h *harness) shippedOrder(t *testing.T) (buyerID, sellerID uuid.UUID, o types.Order) {
	t.Helper()
	buyerID, sellerID, paid := h.paidOrder(t)
	res, err := h.settlement.MarkShipped(h.ctx, domainagg.ShipmentInput{
		OrderID:        paid.Order.ID,
		ActorID:        sellerID,
		Courier:        "TCS",
		TrackingNumber: "TRK-1",
	})
	if err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	return buyerID, sellerID, res.Order
}

func TestSettlementHappyPathPaysSeller(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID, paid := h.paidOrder(t)

	if paid.Order.Status != order.StatusPaymentConfirmed || !paid.Order.IsAmountFrozen {
		t.Fatalf("after pay: status=%s frozen=%v", paid.Order.Status, paid.Order.IsAmountFrozen)
	}
	if paid.Escrow.Status != escrow.StatusFunded {
		t.Fatalf("escrow after pay: want=funded got=%s", paid.Escrow.Status)
	}
	h.assertBalances(t, buyerID, "1000", "400")

	orderID := paid.Order.ID
	if _, err := h.settlement.MarkParcelBooked(h.ctx, domainagg.ShipmentInput{OrderID: orderID, ActorID: sellerID, Courier: "TCS"}); err != nil {
		t.Fatalf("MarkParcelBooked: %v", err)
	}
	if _, err := h.settlement.MarkShipped(h.ctx, domainagg.ShipmentInput{OrderID: orderID, ActorID: sellerID, TrackingNumber: "TRK-9"}); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	delivered, err := h.settlement.MarkDelivered(h.ctx, domainagg.OrderActionInput{OrderID: orderID, ActorID: sellerID})
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if delivered.Order.Status != order.StatusDeliveredPendingDecision || delivered.Order.DeliveryConfirmationCode == nil {
		t.Fatalf("after delivery: %+v", delivered.Order)
	}
	wantExpiry := h.now.Add(48 * time.Hour)
	if delivered.Order.DeliveryConfirmationExpiry == nil || !delivered.Order.DeliveryConfirmationExpiry.Equal(wantExpiry) {
		t.Fatalf("expiry: want=%s got=%v", wantExpiry, delivered.Order.DeliveryConfirmationExpiry)
	}

	if _, err := h.settlement.ConfirmDelivery(h.ctx, domainagg.ConfirmDeliveryInput{OrderID: orderID, ActorID: buyerID, Code: "WRONG"}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("wrong code: want invariant_violation got %v", err)
	}

	done, err := h.settlement.ConfirmDelivery(h.ctx, domainagg.ConfirmDeliveryInput{
		OrderID: orderID,
		ActorID: buyerID,
		Code:    *delivered.Order.DeliveryConfirmationCode,
	})
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if done.Order.Status != order.StatusCompleted || done.Order.IsAmountFrozen {
		t.Fatalf("after confirm: status=%s frozen=%v", done.Order.Status, done.Order.IsAmountFrozen)
	}
	if done.Escrow.Status != escrow.StatusReleased {
		t.Fatalf("escrow after confirm: want=released got=%s", done.Escrow.Status)
	}
	h.assertBalances(t, buyerID, "600", "0")
	h.assertBalances(t, sellerID, "400", "0")

	moves, err := h.set.WalletTx.ListByReference(h.dbc, wallet.RefOrder, orderID)
	if err != nil {
		t.Fatalf("ListByReference: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("ledger rows for order: want=3 got=%d", len(moves))
	}

	if _, err := h.settlement.ConfirmDelivery(h.ctx, domainagg.ConfirmDeliveryInput{OrderID: orderID, ActorID: buyerID}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("second confirm: want invariant_violation got %v", err)
	}
	h.assertBalances(t, sellerID, "400", "0")
}

func TestConfirmDeliveryFromShippedImpliesDelivery(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID, shipped := h.shippedOrder(t)

	// No code has been issued yet, so whatever the buyer types is not checked.
	done, err := h.settlement.ConfirmDelivery(h.ctx, domainagg.ConfirmDeliveryInput{OrderID: shipped.ID, ActorID: buyerID, Code: "ABC123"})
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if done.Order.Status != order.StatusCompleted || done.Order.DeliveredDate == nil {
		t.Fatalf("unexpected order: %+v", done.Order)
	}
	h.assertBalances(t, sellerID, "400", "0")
}

func TestPayOrderInsufficientFundsLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID := uuid.New(), uuid.New()
	repotest.SeedWallet(t, h.ctx, h.tx, buyerID, "100")
	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{
		BuyerID: buyerID, SellerID: sellerID, Title: "lamp", Amount: repotest.PKR("400"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	_, err = h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: created.Order.ID, ActorID: buyerID})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("PayOrder: want precondition_failed got %v", err)
	}
	h.assertBalances(t, buyerID, "100", "0")
	o, err := h.set.Orders.GetByID(h.dbc, created.Order.ID)
	if err != nil || o == nil {
		t.Fatalf("GetByID: %v %v", o, err)
	}
	if o.Status != order.StatusCreated || o.IsAmountFrozen || o.Version != 0 {
		t.Fatalf("order mutated: status=%s frozen=%v version=%d", o.Status, o.IsAmountFrozen, o.Version)
	}
}

func TestPayOrderAuthorization(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID := uuid.New(), uuid.New()
	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{
		BuyerID: buyerID, SellerID: sellerID, Title: "desk", Amount: repotest.PKR("10"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	for _, actor := range []uuid.UUID{sellerID, uuid.New()} {
		_, err := h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: created.Order.ID, ActorID: actor})
		if !domainagg.IsCode(err, domainagg.CodeForbidden) {
			t.Fatalf("PayOrder by %s: want forbidden got %v", actor, err)
		}
	}
	_, err = h.settlement.MarkShipped(h.ctx, domainagg.ShipmentInput{OrderID: created.Order.ID, ActorID: buyerID})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("MarkShipped by buyer: want forbidden got %v", err)
	}
	_, err = h.settlement.MarkShipped(h.ctx, domainagg.ShipmentInput{OrderID: created.Order.ID, ActorID: sellerID})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("MarkShipped before payment: want invariant_violation got %v", err)
	}
	_, err = h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: uuid.New(), ActorID: buyerID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("PayOrder unknown order: want not_found got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	same := uuid.New()
	_, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{BuyerID: same, SellerID: same, Title: "x", Amount: repotest.PKR("1")})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("same party: want validation got %v", err)
	}
	_, err = h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{BuyerID: uuid.New(), SellerID: uuid.New(), Title: "x", Amount: repotest.PKR("0")})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("zero amount: want invariant_violation got %v", err)
	}
}

func TestMarkPaymentPendingThenPay(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID := uuid.New(), uuid.New()
	repotest.SeedWallet(t, h.ctx, h.tx, buyerID, "50")
	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{BuyerID: buyerID, SellerID: sellerID, Title: "pen", Amount: repotest.PKR("50")})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	pending, err := h.settlement.MarkPaymentPending(h.ctx, domainagg.OrderActionInput{OrderID: created.Order.ID, ActorID: buyerID})
	if err != nil || pending.Order.Status != order.StatusPaymentPending {
		t.Fatalf("MarkPaymentPending: %v %s", err, pending.Order.Status)
	}
	paid, err := h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: created.Order.ID, ActorID: buyerID})
	if err != nil || paid.Order.Status != order.StatusPaymentConfirmed {
		t.Fatalf("PayOrder: %v %s", err, paid.Order.Status)
	}
	h.assertBalances(t, buyerID, "50", "50")
}

func TestAcceptSellerRequestRetiresPlaceholder(t *testing.T) {
	h := newHarness(t)
	sellerID, buyerID := uuid.New(), uuid.New()
	req, err := h.settlement.CreateSellerRequest(h.ctx, domainagg.CreateSellerRequestInput{
		SellerID:  sellerID,
		Title:     "handmade rug",
		Amount:    repotest.PKR("250"),
		ImageURLs: []string{"https://img.example/rug.jpg"},
	})
	if err != nil {
		t.Fatalf("CreateSellerRequest: %v", err)
	}
	if !req.Order.IsSellerRequest() {
		t.Fatalf("placeholder should have buyer == seller")
	}
	if _, err := h.settlement.PayOrder(h.ctx, domainagg.OrderActionInput{OrderID: req.Order.ID, ActorID: sellerID}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("paying a seller request: want invariant_violation got %v", err)
	}
	if _, err := h.settlement.AcceptSellerRequest(h.ctx, domainagg.AcceptSellerRequestInput{RequestID: req.Order.ID, BuyerID: sellerID}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("self accept: want invariant_violation got %v", err)
	}

	acc, err := h.settlement.AcceptSellerRequest(h.ctx, domainagg.AcceptSellerRequestInput{
		RequestID:       req.Order.ID,
		BuyerID:         buyerID,
		DeliveryAddress: "12 Mall Road",
	})
	if err != nil {
		t.Fatalf("AcceptSellerRequest: %v", err)
	}
	if acc.Order.ID == req.Order.ID || acc.Order.BuyerID != buyerID || acc.Order.SellerID != sellerID {
		t.Fatalf("unexpected spawned order: %+v", acc.Order)
	}
	if acc.Order.SourceRequestID == nil || *acc.Order.SourceRequestID != req.Order.ID {
		t.Fatalf("spawned order should link its request")
	}
	if !acc.Order.Amount.Equals(repotest.PKR("250")) || len(acc.Order.Images()) != 1 {
		t.Fatalf("spawned order should copy amount and images: %+v", acc.Order)
	}
	if acc.Escrow.ID == req.Escrow.ID || acc.Escrow.Status != escrow.StatusCreated {
		t.Fatalf("spawned escrow: %+v", acc.Escrow)
	}
	if acc.Request.Status != order.StatusCancelled {
		t.Fatalf("placeholder: want=cancelled got=%s", acc.Request.Status)
	}
	oldEscrow, err := h.set.Escrows.GetByID(h.dbc, req.Escrow.ID)
	if err != nil || oldEscrow == nil || oldEscrow.Status != escrow.StatusCancelled {
		t.Fatalf("placeholder escrow: %+v %v", oldEscrow, err)
	}

	if _, err := h.settlement.AcceptSellerRequest(h.ctx, domainagg.AcceptSellerRequestInput{RequestID: req.Order.ID, BuyerID: uuid.New()}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("second accept: want invariant_violation got %v", err)
	}
}

func TestRejectBeforeShipmentReturnsHold(t *testing.T) {
	h := newHarness(t)
	buyerID, _, paid := h.paidOrder(t)

	res, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{OrderID: paid.Order.ID, ActorID: buyerID, Reason: "changed my mind"})
	if err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	if res.RequiresAdmin || res.Dispute != nil {
		t.Fatalf("early rejection should not need an admin")
	}
	if res.Order.Status != order.StatusRejected || res.Order.IsAmountFrozen {
		t.Fatalf("order: status=%s frozen=%v", res.Order.Status, res.Order.IsAmountFrozen)
	}
	if res.Escrow.Status != escrow.StatusRefunded {
		t.Fatalf("escrow: want=refunded got=%s", res.Escrow.Status)
	}
	h.assertBalances(t, buyerID, "1000", "0")
}

func TestRejectUnpaidOrderRefundsEscrowOnly(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID := uuid.New(), uuid.New()
	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{BuyerID: buyerID, SellerID: sellerID, Title: "mug", Amount: repotest.PKR("20")})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	res, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{OrderID: created.Order.ID, ActorID: buyerID})
	if err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	if res.Order.Status != order.StatusRejected || res.Escrow.Status != escrow.StatusRefunded {
		t.Fatalf("unexpected result: order=%s escrow=%s", res.Order.Status, res.Escrow.Status)
	}
	if w, err := h.set.Wallets.GetByUserID(h.dbc, buyerID); err != nil || w != nil {
		t.Fatalf("rejecting an unpaid order must not touch wallets: %v %v", w, err)
	}
}

func TestRejectAfterShipmentOpensDispute(t *testing.T) {
	h := newHarness(t)
	buyerID, _, shipped := h.shippedOrder(t)

	res, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{
		OrderID:  shipped.ID,
		ActorID:  buyerID,
		Reason:   "arrived broken",
		Evidence: "photo-1",
	})
	if err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	if !res.RequiresAdmin || res.Dispute == nil {
		t.Fatalf("late rejection should open a dispute")
	}
	if res.Order.Status != order.StatusDisputed || !res.Order.IsAmountFrozen {
		t.Fatalf("order: status=%s frozen=%v", res.Order.Status, res.Order.IsAmountFrozen)
	}
	if res.Escrow.Status != escrow.StatusDisputed {
		t.Fatalf("escrow: want=disputed got=%s", res.Escrow.Status)
	}
	if res.Dispute.Status != dispute.StatusOpen || res.Dispute.RaisedByID != buyerID {
		t.Fatalf("dispute: %+v", res.Dispute)
	}
	h.assertBalances(t, buyerID, "1000", "400")

	_, err = h.disputes.Raise(h.ctx, domainagg.RaiseDisputeInput{OrderID: shipped.ID, RaisedBy: buyerID, Reason: "again"})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("second dispute: want invariant_violation got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID, paid := h.paidOrder(t)

	_, err := h.settlement.CancelOrder(h.ctx, domainagg.CancelOrderInput{OrderID: paid.Order.ID, ActorID: uuid.New()})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("stranger cancel: want forbidden got %v", err)
	}
	res, err := h.settlement.CancelOrder(h.ctx, domainagg.CancelOrderInput{OrderID: paid.Order.ID, ActorID: sellerID, Reason: "out of stock"})
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if res.Order.Status != order.StatusCancelled || res.Escrow.Status != escrow.StatusRefunded {
		t.Fatalf("unexpected result: order=%s escrow=%s", res.Order.Status, res.Escrow.Status)
	}
	h.assertBalances(t, buyerID, "1000", "0")

	created, err := h.settlement.CreateOrder(h.ctx, domainagg.CreateOrderInput{BuyerID: buyerID, SellerID: sellerID, Title: "book", Amount: repotest.PKR("5")})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	res, err = h.settlement.CancelOrder(h.ctx, domainagg.CancelOrderInput{OrderID: created.Order.ID, ActorID: uuid.New(), IsAdmin: true})
	if err != nil {
		t.Fatalf("admin CancelOrder: %v", err)
	}
	if res.Escrow.Status != escrow.StatusCancelled {
		t.Fatalf("unpaid cancel escrow: want=cancelled got=%s", res.Escrow.Status)
	}

	_, _, shipped := h.shippedOrder(t)
	_, err = h.settlement.CancelOrder(h.ctx, domainagg.CancelOrderInput{OrderID: shipped.ID, ActorID: shipped.BuyerID})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("cancel after shipment: want invariant_violation got %v", err)
	}
}

func TestAutoCompleteIfExpired(t *testing.T) {
	h := newHarness(t)
	_, sellerID, shipped := h.shippedOrder(t)
	if _, err := h.settlement.MarkDelivered(h.ctx, domainagg.OrderActionInput{OrderID: shipped.ID, ActorID: sellerID}); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	early, err := h.settlement.AutoCompleteIfExpired(h.ctx, domainagg.AutoCompleteInput{OrderID: shipped.ID, Now: h.now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("AutoCompleteIfExpired early: %v", err)
	}
	if early.Completed || early.Order.Status != order.StatusDeliveredPendingDecision {
		t.Fatalf("window still open: %+v", early)
	}

	ids, err := h.set.Orders.ListExpiredPendingDecision(h.dbc, h.now.Add(49*time.Hour), 10)
	if err != nil || len(ids) != 1 || ids[0] != shipped.ID {
		t.Fatalf("ListExpiredPendingDecision: %v %v", ids, err)
	}
	late, err := h.settlement.AutoCompleteIfExpired(h.ctx, domainagg.AutoCompleteInput{OrderID: shipped.ID, Now: h.now.Add(49 * time.Hour)})
	if err != nil {
		t.Fatalf("AutoCompleteIfExpired late: %v", err)
	}
	if !late.Completed || late.Order.Status != order.StatusCompleted {
		t.Fatalf("expired window: %+v", late)
	}
	h.assertBalances(t, sellerID, "400", "0")

	again, err := h.settlement.AutoCompleteIfExpired(h.ctx, domainagg.AutoCompleteInput{OrderID: shipped.ID, Now: h.now.Add(50 * time.Hour)})
	if err != nil || again.Completed {
		t.Fatalf("completed order must be skipped: %+v %v", again, err)
	}
}
