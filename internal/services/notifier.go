package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/ctxutil"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// =========================
// Order / dispute / withdrawal notifier
// =========================

// Notifier is called after a command commits. It never fails the command:
// enqueue errors are logged and dropped.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, o types.Order)
	NotifyPaymentPending(ctx context.Context, o types.Order)
	NotifyPaymentConfirmed(ctx context.Context, o types.Order)
	NotifyParcelBooked(ctx context.Context, o types.Order)
	NotifyShipped(ctx context.Context, o types.Order)
	NotifyDelivered(ctx context.Context, o types.Order)
	NotifyCompleted(ctx context.Context, o types.Order)
	NotifyCancelled(ctx context.Context, o types.Order)
	NotifyRejected(ctx context.Context, o types.Order)
	NotifyDisputed(ctx context.Context, o types.Order, d types.Dispute)
	NotifyDisputeResolved(ctx context.Context, o types.Order, d types.Dispute, buyerRefund, sellerPayout money.Money)
	NotifyWithdrawalRequested(ctx context.Context, w types.Withdrawal)
	NotifyWithdrawalSettled(ctx context.Context, w types.Withdrawal)
	NotifyWithdrawalFailed(ctx context.Context, w types.Withdrawal)

	Enqueue(ctx context.Context, eventType string, aggregateID uuid.UUID, payload any)
}

type OrderEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	Status     types.OrderStatus `json:"status"`
	Title      string            `json:"title"`
	Amount     string            `json:"amount"`
	Currency   string            `json:"currency"`
	Recipients []uuid.UUID       `json:"recipients"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty"`
	Detail     map[string]any    `json:"detail,omitempty"`
}

type WithdrawalEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	Reference    string    `json:"reference"`
	Status       string    `json:"status"`
	Channel      string    `json:"channel"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Reason       string    `json:"reason,omitempty"`
}

type outboxNotifier struct {
	log  *logger.Logger
	repo repos.OutboxMessageRepo
}

func NewOutboxNotifier(baseLog *logger.Logger, repo repos.OutboxMessageRepo) Notifier {
	return &outboxNotifier{log: baseLog.With("service", "OrderNotifier"), repo: repo}
}

func (n *outboxNotifier) NotifyOrderCreated(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderCreated, o, nil)
}

func (n *outboxNotifier) NotifyPaymentPending(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderPaymentPending, o, nil)
}

func (n *outboxNotifier) NotifyPaymentConfirmed(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderPaymentConfirmed, o, nil)
}

func (n *outboxNotifier) NotifyParcelBooked(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderParcelBooked, o, shipmentDetail(o))
}

func (n *outboxNotifier) NotifyShipped(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderShipped, o, shipmentDetail(o))
}

func (n *outboxNotifier) NotifyDelivered(ctx context.Context, o types.Order) {
	detail := map[string]any{}
	if o.DeliveryConfirmationExpiry != nil {
		detail["decision_deadline"] = o.DeliveryConfirmationExpiry.UTC()
	}
	n.order(ctx, outbox.EventOrderDelivered, o, detail)
}

func (n *outboxNotifier) NotifyCompleted(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderCompleted, o, nil)
}

func (n *outboxNotifier) NotifyCancelled(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderCancelled, o, reasonDetail(o.CancellationReason))
}

func (n *outboxNotifier) NotifyRejected(ctx context.Context, o types.Order) {
	n.order(ctx, outbox.EventOrderRejected, o, reasonDetail(o.RejectionReason))
}

func (n *outboxNotifier) NotifyDisputed(ctx context.Context, o types.Order, d types.Dispute) {
	n.order(ctx, outbox.EventOrderDisputed, o, map[string]any{
		"dispute_id": d.ID,
		"raised_by":  d.RaisedByID,
		"reason":     d.Reason,
	})
}

func (n *outboxNotifier) NotifyDisputeResolved(ctx context.Context, o types.Order, d types.Dispute, buyerRefund, sellerPayout money.Money) {
	detail := map[string]any{
		"dispute_id":    d.ID,
		"buyer_refund":  buyerRefund.Amount.StringFixed(2),
		"seller_payout": sellerPayout.Amount.StringFixed(2),
	}
	if d.Resolution != nil {
		detail["resolution"] = string(*d.Resolution)
	}
	n.order(ctx, outbox.EventDisputeResolved, o, detail)
}

func (n *outboxNotifier) NotifyWithdrawalRequested(ctx context.Context, w types.Withdrawal) {
	n.withdrawal(ctx, outbox.EventWithdrawalRequested, w)
}

func (n *outboxNotifier) NotifyWithdrawalSettled(ctx context.Context, w types.Withdrawal) {
	n.withdrawal(ctx, outbox.EventWithdrawalSettled, w)
}

func (n *outboxNotifier) NotifyWithdrawalFailed(ctx context.Context, w types.Withdrawal) {
	n.withdrawal(ctx, outbox.EventWithdrawalFailed, w)
}

func (n *outboxNotifier) Enqueue(ctx context.Context, eventType string, aggregateID uuid.UUID, payload any) {
	if n == nil || n.repo == nil || aggregateID == uuid.Nil {
		return
	}
	msg, err := outbox.NewMessage(eventType, aggregateTypeOf(eventType), aggregateID, payload)
	if err != nil {
		n.log.Warn("notification encode failed", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
		return
	}
	// Runs after commit on a detached context: a cancelled request must not drop the row.
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctxutil.Default(ctx))}
	if _, err := n.repo.Create(dbc, []*types.OutboxMessage{msg}); err != nil {
		fields := append([]interface{}{"event_type", eventType, "aggregate_id", aggregateID, "error", err}, ctxutil.GetTraceData(ctx).LogFields()...)
		n.log.Warn("notification enqueue failed", fields...)
	}
}

func (n *outboxNotifier) order(ctx context.Context, eventType string, o types.Order, detail map[string]any) {
	ev := OrderEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Status:     o.Status,
		Title:      o.Title,
		Amount:     o.Amount.Amount.StringFixed(2),
		Currency:   o.Amount.Currency,
		Recipients: orderRecipients(o),
	}
	if a := ctxutil.GetActor(ctx); a != nil && a.UserID != uuid.Nil {
		id := a.UserID
		ev.ActorID = &id
	}
	if len(detail) > 0 {
		ev.Detail = detail
	}
	n.Enqueue(ctx, eventType, o.ID, ev)
}

func (n *outboxNotifier) withdrawal(ctx context.Context, eventType string, w types.Withdrawal) {
	ev := WithdrawalEvent{
		WithdrawalID: w.ID,
		SellerID:     w.SellerID,
		Reference:    w.Reference,
		Status:       string(w.Status),
		Channel:      string(w.Channel),
		Amount:       w.Amount.Amount.StringFixed(2),
		Currency:     w.Amount.Currency,
	}
	if w.FailureReason != nil {
		ev.Reason = *w.FailureReason
	}
	n.Enqueue(ctx, eventType, w.ID, ev)
}

func orderRecipients(o types.Order) []uuid.UUID {
	if o.BuyerID == o.SellerID {
		return []uuid.UUID{o.SellerID}
	}
	return []uuid.UUID{o.BuyerID, o.SellerID}
}

func shipmentDetail(o types.Order) map[string]any {
	detail := map[string]any{}
	if o.Courier != nil {
		detail["courier"] = *o.Courier
	}
	if o.TrackingNumber != nil {
		detail["tracking_number"] = *o.TrackingNumber
	}
	return detail
}

func reasonDetail(reason *string) map[string]any {
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return nil
	}
	return map[string]any{"reason": *reason}
}

// aggregateTypeOf maps "order.created" to "order".
func aggregateTypeOf(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		return eventType[:i]
	}
	return eventType
}

type nopNotifier struct{}

// NopNotifier discards every notification.
func NopNotifier() Notifier { return nopNotifier{} }

func (nopNotifier) NotifyOrderCreated(context.Context, types.Order)     {}
func (nopNotifier) NotifyPaymentPending(context.Context, types.Order)   {}
func (nopNotifier) NotifyPaymentConfirmed(context.Context, types.Order) {}
func (nopNotifier) NotifyParcelBooked(context.Context, types.Order)     {}
func (nopNotifier) NotifyShipped(context.Context, types.Order)          {}
func (nopNotifier) NotifyDelivered(context.Context, types.Order)        {}
func (nopNotifier) NotifyCompleted(context.Context, types.Order)        {}
func (nopNotifier) NotifyCancelled(context.Context, types.Order)        {}
func (nopNotifier) NotifyRejected(context.Context, types.Order)         {}
func (nopNotifier) NotifyDisputed(context.Context, types.Order, types.Dispute) {
}
func (nopNotifier) NotifyDisputeResolved(context.Context, types.Order, types.Dispute, money.Money, money.Money) {
}
func (nopNotifier) NotifyWithdrawalRequested(context.Context, types.Withdrawal)       {}
func (nopNotifier) NotifyWithdrawalSettled(context.Context, types.Withdrawal)         {}
func (nopNotifier) NotifyWithdrawalFailed(context.Context, types.Withdrawal)          {}
func (nopNotifier) Enqueue(context.Context, string, uuid.UUID, any)                   {}
