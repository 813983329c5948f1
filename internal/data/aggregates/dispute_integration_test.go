package aggregates

import (
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/escrow-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/order"
)

func TestDisputeResolutionMovesHoldOnce(t *testing.T) {
	refund := repotest.PKR("150")
	cases := []struct {
		name        string
		resolution  dispute.Resolution
		refund      *money.Money
		buyer       string
		seller      string
		orderStatus order.Status
		escrow      escrow.Status
	}{
		{"buyer", dispute.ResolutionInFavorOfBuyer, nil, "1000", "0", order.StatusDisputeResolved, escrow.StatusRefunded},
		{"seller", dispute.ResolutionInFavorOfSeller, nil, "600", "400", order.StatusCompleted, escrow.StatusReleased},
		{"compromise", dispute.ResolutionCompromise, &refund, "750", "250", order.StatusDisputeResolved, escrow.StatusReleased},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			buyerID, sellerID, shipped := h.shippedOrder(t)
			rejected, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{OrderID: shipped.ID, ActorID: buyerID, Reason: "not as described"})
			if err != nil {
				t.Fatalf("RejectDelivery: %v", err)
			}
			adminID := uuid.New()
			if _, err := h.disputes.Escalate(h.ctx, domainagg.DisputeAdminInput{DisputeID: rejected.Dispute.ID, AdminID: adminID, Notes: "needs courier report"}); err != nil {
				t.Fatalf("Escalate: %v", err)
			}

			res, err := h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{
				DisputeID:   rejected.Dispute.ID,
				AdminID:     adminID,
				Resolution:  tc.resolution,
				Notes:       "ruled",
				BuyerRefund: tc.refund,
			})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !res.Dispute.Settled || res.Dispute.Status != dispute.StatusResolved {
				t.Fatalf("dispute: settled=%v status=%s", res.Dispute.Settled, res.Dispute.Status)
			}
			if res.Order.Status != tc.orderStatus || res.Order.IsAmountFrozen {
				t.Fatalf("order: want=%s got=%s frozen=%v", tc.orderStatus, res.Order.Status, res.Order.IsAmountFrozen)
			}
			if res.Escrow.Status != tc.escrow {
				t.Fatalf("escrow: want=%s got=%s", tc.escrow, res.Escrow.Status)
			}
			h.assertBalances(t, buyerID, tc.buyer, "0")
			if tc.seller != "0" {
				h.assertBalances(t, sellerID, tc.seller, "0")
			}

			_, err = h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{
				DisputeID:  rejected.Dispute.ID,
				AdminID:    adminID,
				Resolution: dispute.ResolutionInFavorOfSeller,
			})
			if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
				t.Fatalf("second Resolve: want invariant_violation got %v", err)
			}
			h.assertBalances(t, buyerID, tc.buyer, "0")

			closed, err := h.disputes.Close(h.ctx, domainagg.DisputeAdminInput{DisputeID: rejected.Dispute.ID, AdminID: adminID})
			if err != nil || closed.Dispute.Status != dispute.StatusClosed {
				t.Fatalf("Close: %v %s", err, closed.Dispute.Status)
			}
		})
	}
}

func TestResolveCompromiseValidation(t *testing.T) {
	h := newHarness(t)
	buyerID, _, shipped := h.shippedOrder(t)
	rejected, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{OrderID: shipped.ID, ActorID: buyerID, Reason: "late"})
	if err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	adminID := uuid.New()

	_, err = h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{DisputeID: rejected.Dispute.ID, AdminID: adminID, Resolution: dispute.ResolutionCompromise})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing refund: want validation got %v", err)
	}
	tooMuch := repotest.PKR("400")
	_, err = h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{DisputeID: rejected.Dispute.ID, AdminID: adminID, Resolution: dispute.ResolutionCompromise, BuyerRefund: &tooMuch})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("refund equal to hold: want invariant_violation got %v", err)
	}
	_, err = h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{DisputeID: rejected.Dispute.ID, Resolution: dispute.ResolutionInFavorOfBuyer})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("missing admin: want forbidden got %v", err)
	}
	h.assertBalances(t, buyerID, "1000", "400")
}

func TestRaiseDisputeBySellerAndEvidence(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID, paid := h.paidOrder(t)

	_, err := h.disputes.Raise(h.ctx, domainagg.RaiseDisputeInput{OrderID: paid.Order.ID, RaisedBy: uuid.New(), Reason: "spam"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("stranger raise: want forbidden got %v", err)
	}
	raised, err := h.disputes.Raise(h.ctx, domainagg.RaiseDisputeInput{OrderID: paid.Order.ID, RaisedBy: sellerID, Reason: "buyer unreachable"})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if raised.Order.Status != order.StatusDisputed {
		t.Fatalf("order: want=disputed got=%s", raised.Order.Status)
	}

	withEvidence, err := h.disputes.AddEvidence(h.ctx, domainagg.DisputeEvidenceInput{DisputeID: raised.Dispute.ID, ActorID: buyerID, Evidence: "chat log"})
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if withEvidence.Dispute.Evidence == nil || *withEvidence.Dispute.Evidence != "chat log" {
		t.Fatalf("evidence: %v", withEvidence.Dispute.Evidence)
	}
	_, err = h.disputes.AddEvidence(h.ctx, domainagg.DisputeEvidenceInput{DisputeID: raised.Dispute.ID, ActorID: uuid.New(), Evidence: "x"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("stranger evidence: want forbidden got %v", err)
	}
	notes, err := h.disputes.AddAdminNotes(h.ctx, domainagg.DisputeAdminInput{DisputeID: raised.Dispute.ID, AdminID: uuid.New(), Notes: "called both"})
	if err != nil || notes.Dispute.AdminNotes == nil {
		t.Fatalf("AddAdminNotes: %v", err)
	}
	_, err = h.disputes.Close(h.ctx, domainagg.DisputeAdminInput{DisputeID: raised.Dispute.ID, AdminID: uuid.New()})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("close while open: want invariant_violation got %v", err)
	}
}

func TestDisputeOnRejectedOrderCannotPaySeller(t *testing.T) {
	h := newHarness(t)
	buyerID, sellerID, paid := h.paidOrder(t)
	if _, err := h.settlement.RejectDelivery(h.ctx, domainagg.RejectDeliveryInput{OrderID: paid.Order.ID, ActorID: buyerID, Reason: "changed my mind"}); err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	raised, err := h.disputes.Raise(h.ctx, domainagg.RaiseDisputeInput{OrderID: paid.Order.ID, RaisedBy: sellerID, Reason: "item was already packed"})
	if err != nil {
		t.Fatalf("Raise on rejected order: %v", err)
	}
	if raised.Order.Status != order.StatusDisputed {
		t.Fatalf("order: want=disputed got=%s", raised.Order.Status)
	}
	adminID := uuid.New()

	refund := repotest.PKR("100")
	for _, in := range []domainagg.ResolveDisputeInput{
		{DisputeID: raised.Dispute.ID, AdminID: adminID, Resolution: dispute.ResolutionInFavorOfSeller},
		{DisputeID: raised.Dispute.ID, AdminID: adminID, Resolution: dispute.ResolutionCompromise, BuyerRefund: &refund},
	} {
		if _, err := h.disputes.Resolve(h.ctx, in); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
			t.Fatalf("%s without a hold: want invariant_violation got %v", in.Resolution, err)
		}
	}
	h.assertBalances(t, buyerID, "1000", "0")
	if w, err := h.set.Wallets.GetByUserID(h.dbc, sellerID); err != nil || w != nil {
		t.Fatalf("seller wallet must not be opened: %v %v", w, err)
	}

	res, err := h.disputes.Resolve(h.ctx, domainagg.ResolveDisputeInput{DisputeID: raised.Dispute.ID, AdminID: adminID, Resolution: dispute.ResolutionInFavorOfBuyer})
	if err != nil {
		t.Fatalf("Resolve buyer: %v", err)
	}
	if res.Order.Status != order.StatusDisputeResolved || res.Escrow.Status != escrow.StatusRefunded {
		t.Fatalf("result: order=%s escrow=%s", res.Order.Status, res.Escrow.Status)
	}
	if res.SellerPayout.IsPositive() || res.BuyerRefund.IsPositive() {
		t.Fatalf("no funds should move: refund=%s payout=%s", res.BuyerRefund, res.SellerPayout)
	}
	h.assertBalances(t, buyerID, "1000", "0")
}
