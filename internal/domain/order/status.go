package order

type Status string

const (
	StatusCreated                  Status = "created"
	StatusPaymentPending           Status = "payment_pending"
	StatusPaymentConfirmed         Status = "payment_confirmed"
	StatusAwaitingShipment         Status = "awaiting_shipment"
	StatusShipped                  Status = "shipped"
	StatusDelivered                Status = "delivered" // never entered
	StatusDeliveredPendingDecision Status = "delivered_pending_decision"
	StatusConfirmed                Status = "confirmed" // never entered
	StatusCompleted                Status = "completed"
	StatusCancelled                Status = "cancelled"
	StatusRejected                 Status = "rejected"
	StatusDisputed                 Status = "disputed"
	StatusDisputeResolved          Status = "dispute_resolved"
)

// Action names a transition in the order table.
type Action string

const (
	ActionMarkPaymentPending   Action = "mark_payment_pending"
	ActionConfirmPayment       Action = "confirm_payment"
	ActionMarkAwaitingShipment Action = "mark_awaiting_shipment"
	ActionMarkAsShipped        Action = "mark_as_shipped"
	ActionMarkAsDelivered      Action = "mark_as_delivered"
	ActionComplete             Action = "complete"
	ActionCancel               Action = "cancel"
	ActionReject               Action = "reject"
	ActionMarkAsDisputed       Action = "mark_as_disputed"
	ActionResolveDispute       Action = "resolve_dispute"
)

// CanTransition is the single source of truth for which actions each status admits.
func CanTransition(from Status, action Action) bool {
	switch action {
	case ActionMarkPaymentPending:
		return from == StatusCreated
	case ActionConfirmPayment:
		return from == StatusCreated || from == StatusPaymentPending
	case ActionMarkAwaitingShipment:
		return from == StatusPaymentConfirmed
	case ActionMarkAsShipped:
		return from == StatusPaymentConfirmed || from == StatusAwaitingShipment
	case ActionMarkAsDelivered:
		return from == StatusShipped
	case ActionComplete:
		return from == StatusDeliveredPendingDecision
	case ActionCancel, ActionReject:
		return from.BeforeShipment()
	case ActionMarkAsDisputed:
		switch from {
		case StatusPaymentConfirmed, StatusAwaitingShipment, StatusShipped,
			StatusDeliveredPendingDecision, StatusRejected:
			return true
		}
		return false
	case ActionResolveDispute:
		return from == StatusDisputed
	}
	return false
}

// BeforeShipment reports statuses from which the buyer can still back out
// without admin involvement.
func (s Status) BeforeShipment() bool {
	switch s {
	case StatusCreated, StatusPaymentPending, StatusPaymentConfirmed, StatusAwaitingShipment:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDisputeResolved:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPaymentPending, StatusPaymentConfirmed, StatusAwaitingShipment,
		StatusShipped, StatusDelivered, StatusDeliveredPendingDecision, StatusConfirmed,
		StatusCompleted, StatusCancelled, StatusRejected, StatusDisputed, StatusDisputeResolved:
		return true
	}
	return false
}
