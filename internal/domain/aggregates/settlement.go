package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

var SettlementAggregateContract = Contract{
	Name:      "Payments.SettlementAggregate",
	Writes:    []string{"orders", "escrow", "wallet", "wallet_transaction", "dispute"},
	LockOrder: []string{"orders", "escrow", "wallet"},
	Notes:     "Order, escrow and wallet progression from checkout to payout or refund.",
}

// SettlementAggregate sequences order, escrow and wallet transitions for one order.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodePreconditionFailed, CodeForbidden, CodeRetryable, CodeInternal.
type SettlementAggregate interface {
	Aggregate

	// CreateOrder atomically creates an escrow and its order.
	CreateOrder(ctx context.Context, in CreateOrderInput) (OrderResult, error)

	// CreateSellerRequest creates a placeholder order (buyer == seller) awaiting a real buyer.
	CreateSellerRequest(ctx context.Context, in CreateSellerRequestInput) (OrderResult, error)

	// AcceptSellerRequest spawns a real order for the accepting buyer and retires the placeholder.
	AcceptSellerRequest(ctx context.Context, in AcceptSellerRequestInput) (AcceptSellerRequestResult, error)

	// MarkPaymentPending records that the buyer started paying.
	MarkPaymentPending(ctx context.Context, in OrderActionInput) (OrderResult, error)

	// PayOrder freezes the buyer's funds, funds the escrow and confirms payment.
	PayOrder(ctx context.Context, in OrderActionInput) (OrderResult, error)

	// MarkParcelBooked records courier booking details.
	MarkParcelBooked(ctx context.Context, in ShipmentInput) (OrderResult, error)

	// MarkShipped records dispatch.
	MarkShipped(ctx context.Context, in ShipmentInput) (OrderResult, error)

	// MarkDelivered opens the buyer's decision window.
	MarkDelivered(ctx context.Context, in OrderActionInput) (OrderResult, error)

	// ConfirmDelivery pays the seller out of the buyer's frozen funds.
	ConfirmDelivery(ctx context.Context, in ConfirmDeliveryInput) (OrderResult, error)

	// RejectDelivery refunds before shipment and opens a dispute after it.
	RejectDelivery(ctx context.Context, in RejectDeliveryInput) (RejectDeliveryResult, error)

	// CancelOrder cancels an unshipped order and returns any frozen funds.
	CancelOrder(ctx context.Context, in CancelOrderInput) (OrderResult, error)

	// AutoCompleteIfExpired completes an order whose decision window lapsed.
	AutoCompleteIfExpired(ctx context.Context, in AutoCompleteInput) (AutoCompleteResult, error)
}

type CreateOrderInput struct {
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	Title           string
	Description     string
	Amount          money.Money
	ImageURLs       []string
	DeliveryAddress string
	DeliveryNotes   string
}

type CreateSellerRequestInput struct {
	SellerID    uuid.UUID
	Title       string
	Description string
	Amount      money.Money
	ImageURLs   []string
}

type AcceptSellerRequestInput struct {
	RequestID       uuid.UUID
	BuyerID         uuid.UUID
	DeliveryAddress string
	DeliveryNotes   string
}

type OrderActionInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

type ShipmentInput struct {
	OrderID        uuid.UUID
	ActorID        uuid.UUID
	Courier        string
	TrackingNumber string
	ShippingProof  string
}

type ConfirmDeliveryInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	// Optional; checked against the code issued at delivery when present.
	Code string
}

type RejectDeliveryInput struct {
	OrderID     uuid.UUID
	ActorID     uuid.UUID
	Reason      string
	Description string
	Evidence    string
}

type CancelOrderInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	IsAdmin bool
	Reason  string
}

type AutoCompleteInput struct {
	OrderID uuid.UUID
	Now     time.Time
}

type OrderResult struct {
	Order  types.Order
	Escrow types.Escrow
}

type AcceptSellerRequestResult struct {
	Order   types.Order
	Escrow  types.Escrow
	Request types.Order
}

type RejectDeliveryResult struct {
	Order  types.Order
	Escrow types.Escrow
	// Set when the rejection came too late for a self-service refund.
	RequiresAdmin bool
	Dispute       *types.Dispute
}

type AutoCompleteResult struct {
	Order     types.Order
	Completed bool
}
