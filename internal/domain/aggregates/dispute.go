package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

var DisputeAggregateContract = Contract{
	Name:      "Payments.DisputeAggregate",
	Writes:    []string{"dispute", "orders", "escrow", "wallet", "wallet_transaction"},
	LockOrder: []string{"dispute", "orders", "escrow", "wallet"},
	Notes:     "Dispute lifecycle and the one-time fund settlement of its ruling.",
}

// DisputeAggregate owns dispute invariants, including exactly-once settlement.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeForbidden, CodeRetryable, CodeInternal.
type DisputeAggregate interface {
	Aggregate

	// Raise opens a dispute and marks the order (and a funded escrow) disputed.
	Raise(ctx context.Context, in RaiseDisputeInput) (DisputeResult, error)

	// AddEvidence appends party evidence to an active dispute.
	AddEvidence(ctx context.Context, in DisputeEvidenceInput) (DisputeResult, error)

	// Escalate flags an open dispute for senior review.
	Escalate(ctx context.Context, in DisputeAdminInput) (DisputeResult, error)

	// AddAdminNotes appends internal notes.
	AddAdminNotes(ctx context.Context, in DisputeAdminInput) (DisputeResult, error)

	// Resolve records the ruling and moves the frozen funds accordingly.
	Resolve(ctx context.Context, in ResolveDisputeInput) (ResolveDisputeResult, error)

	// Close archives a resolved dispute.
	Close(ctx context.Context, in DisputeAdminInput) (DisputeResult, error)
}

type RaiseDisputeInput struct {
	OrderID     uuid.UUID
	RaisedBy    uuid.UUID
	Reason      string
	Description string
	Evidence    string
}

type DisputeEvidenceInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Evidence  string
}

type DisputeAdminInput struct {
	DisputeID uuid.UUID
	AdminID   uuid.UUID
	Notes     string
}

type ResolveDisputeInput struct {
	DisputeID  uuid.UUID
	AdminID    uuid.UUID
	Resolution types.DisputeResolution
	Notes      string
	// Required for compromise rulings.
	BuyerRefund *money.Money
}

type DisputeResult struct {
	Dispute types.Dispute
	Order   types.Order
}

type ResolveDisputeResult struct {
	Dispute types.Dispute
	Order   types.Order
	Escrow  types.Escrow
	// Amounts actually moved; zero when the order held no frozen funds.
	BuyerRefund  money.Money
	SellerPayout money.Money
}
