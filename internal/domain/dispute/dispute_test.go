package dispute

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

func pkr(v string) money.Money { return money.MustParse(v, "PKR") }

func newDispute(t *testing.T) *Dispute {
	t.Helper()
	d, err := New(uuid.New(), uuid.New(), "item not as described", "", "photo-1", "PKR")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestNewRequiresReason(t *testing.T) {
	if _, err := New(uuid.New(), uuid.New(), "  ", "", "", "PKR"); !errors.Is(err, errs.ErrInvalidOperation) {
		t.Fatalf("want invalid operation, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	now := time.Now()
	d := newDispute(t)
	if err := d.Escalate(); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if err := d.Escalate(); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("second Escalate: want invalid transition, got %v", err)
	}
	if err := d.AddEvidence("photo-2"); err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if *d.Evidence != "photo-1\nphoto-2" {
		t.Fatalf("evidence: %q", *d.Evidence)
	}
	if err := d.Close(); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("Close unresolved: want invalid transition, got %v", err)
	}
	admin := uuid.New()
	if err := d.Resolve(admin, ResolutionInFavorOfBuyer, "refund buyer", pkr("0"), pkr("100"), now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Status != StatusResolved || *d.Resolution != ResolutionInFavorOfBuyer || *d.ResolvedByID != admin || *d.AdminNotes != "refund buyer" {
		t.Fatalf("after resolve: %+v", d)
	}
	if err := d.Resolve(admin, ResolutionInFavorOfSeller, "", pkr("0"), pkr("100"), now); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("second Resolve: want invalid transition, got %v", err)
	}
	if err := d.MarkSettled(now); err != nil {
		t.Fatalf("MarkSettled: %v", err)
	}
	if err := d.MarkSettled(now); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("second MarkSettled: want invalid transition, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.AddAdminNotes("late"); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("notes on closed: want invalid transition, got %v", err)
	}
}

func TestCompromiseBounds(t *testing.T) {
	now := time.Now()
	for _, refund := range []string{"0", "100", "150"} {
		d := newDispute(t)
		if err := d.Resolve(uuid.New(), ResolutionCompromise, "", pkr(refund), pkr("100"), now); !errors.Is(err, errs.ErrInvalidOperation) {
			t.Fatalf("refund=%s: want invalid operation, got %v", refund, err)
		}
		if d.Status != StatusOpen {
			t.Fatalf("refund=%s: failed resolve changed status to %s", refund, d.Status)
		}
	}
	d := newDispute(t)
	if err := d.Resolve(uuid.New(), ResolutionCompromise, "", pkr("40"), pkr("100"), now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !d.BuyerRefund.Equals(pkr("40")) {
		t.Fatalf("BuyerRefund: %s", d.BuyerRefund)
	}
}

func TestResolveRequiresAdmin(t *testing.T) {
	d := newDispute(t)
	if err := d.Resolve(uuid.Nil, ResolutionInFavorOfSeller, "", pkr("0"), pkr("1"), time.Now()); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
}
