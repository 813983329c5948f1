package services

import (
	"testing"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

func TestResolveRequiresAdmin(t *testing.T) {
	agg := &fakeDisputes{}
	svc := NewDisputeService(logger.Nop(), testConfig(), agg, nil, nil, nil)

	_, err := svc.Resolve(asUser(uuid.New()), uuid.New(), ResolveDisputeRequest{Resolution: "in_favor_of_buyer"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	if agg.resolveCalls != 0 {
		t.Fatalf("aggregate must not be called for a non-admin")
	}
}

func TestResolvePassesRulingAndNotifies(t *testing.T) {
	agg := &fakeDisputes{}
	notify := newRecordingNotifier()
	svc := NewDisputeService(logger.Nop(), testConfig(), agg, nil, nil, notify)

	admin, disputeID := uuid.New(), uuid.New()
	if _, err := svc.Resolve(asAdmin(admin), disputeID, ResolveDisputeRequest{Resolution: " In_Favor_Of_Seller ", Notes: "tracking shows delivery"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := agg.lastResolve
	if in.AdminID != admin || in.DisputeID != disputeID || in.Resolution != dispute.ResolutionInFavorOfSeller {
		t.Fatalf("resolve input: got %+v", in)
	}
	if in.BuyerRefund != nil {
		t.Fatalf("non-compromise ruling must not carry a refund")
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "dispute_resolved" {
		t.Fatalf("events: got %v", got)
	}
}

func TestResolveValidation(t *testing.T) {
	agg := &fakeDisputes{}
	svc := NewDisputeService(logger.Nop(), testConfig(), agg, nil, nil, nil)
	ctx := asAdmin(uuid.New())

	if _, err := svc.Resolve(ctx, uuid.New(), ResolveDisputeRequest{Resolution: "coin_flip"}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown resolution: want validation, got %v", err)
	}
	if _, err := svc.Resolve(ctx, uuid.New(), ResolveDisputeRequest{Resolution: "compromise"}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("compromise without refund: want validation, got %v", err)
	}

	cfg := testConfig()
	cfg.Policy.Dispute.AllowCompromise = false
	svc = NewDisputeService(logger.Nop(), cfg, agg, nil, nil, nil)
	if _, err := svc.Resolve(ctx, uuid.New(), ResolveDisputeRequest{Resolution: "compromise", BuyerRefund: "100"}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("compromise disabled: want validation, got %v", err)
	}
	if agg.resolveCalls != 0 {
		t.Fatalf("aggregate should not be reached, calls=%d", agg.resolveCalls)
	}
}

func TestEscalateIsAdminOnly(t *testing.T) {
	agg := &fakeDisputes{}
	svc := NewDisputeService(logger.Nop(), testConfig(), agg, nil, nil, nil)

	if _, err := svc.Escalate(asUser(uuid.New()), uuid.New(), "x"); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	admin := uuid.New()
	if _, err := svc.Escalate(asAdmin(admin), uuid.New(), "needs senior review"); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if agg.lastAdmin.AdminID != admin || agg.lastAdmin.Notes != "needs senior review" {
		t.Fatalf("admin input: got %+v", agg.lastAdmin)
	}
}
