// Package order holds the order aggregate and its status machine.
//
// Order never touches wallets or escrows. Callers freeze, debit, and credit
// funds themselves and then record the outcome here.
package order

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

type Order struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	EscrowID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"escrow_id"`

	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Amount      money.Money    `gorm:"embedded;embeddedPrefix:amount_" json:"amount"`
	ImageURLs   datatypes.JSON `gorm:"column:image_urls;type:jsonb" json:"image_urls,omitempty"`

	Status Status `gorm:"column:status;not null;index" json:"status"`

	// Amount frozen at payment; only held while IsAmountFrozen.
	FrozenAmount   money.Money `gorm:"embedded;embeddedPrefix:frozen_" json:"frozen_amount"`
	IsAmountFrozen bool        `gorm:"column:is_amount_frozen;not null" json:"is_amount_frozen"`
	PaymentDate    *time.Time  `gorm:"column:payment_date" json:"payment_date,omitempty"`

	Courier        *string    `gorm:"column:courier" json:"courier,omitempty"`
	TrackingNumber *string    `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	ShippingProof  *string    `gorm:"column:shipping_proof" json:"shipping_proof,omitempty"`
	ShippedDate    *time.Time `gorm:"column:shipped_date" json:"shipped_date,omitempty"`

	DeliveredDate              *time.Time `gorm:"column:delivered_date" json:"delivered_date,omitempty"`
	DeliveryConfirmationExpiry *time.Time `gorm:"column:delivery_confirmation_expiry;index" json:"delivery_confirmation_expiry,omitempty"`
	DeliveryConfirmationCode   *string    `gorm:"column:delivery_confirmation_code" json:"-"`

	CompletedDate      *time.Time `gorm:"column:completed_date" json:"completed_date,omitempty"`
	RejectedDate       *time.Time `gorm:"column:rejected_date" json:"rejected_date,omitempty"`
	RejectionReason    *string    `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	CancelledDate      *time.Time `gorm:"column:cancelled_date" json:"cancelled_date,omitempty"`
	CancellationReason *string    `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`

	DeliveryAddress *string `gorm:"column:delivery_address" json:"delivery_address,omitempty"`
	DeliveryNotes   *string `gorm:"column:delivery_notes" json:"delivery_notes,omitempty"`

	// Set on orders spawned by accepting a seller request.
	SourceRequestID *uuid.UUID `gorm:"type:uuid;column:source_request_id;index" json:"source_request_id,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type NewParams struct {
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	EscrowID        uuid.UUID
	Title           string
	Description     string
	Amount          money.Money
	ImageURLs       []string
	DeliveryAddress string
	DeliveryNotes   string
}

// New returns an order in StatusCreated. BuyerID == SellerID marks a seller request.
func New(p NewParams) (*Order, error) {
	if p.BuyerID == uuid.Nil || p.SellerID == uuid.Nil || p.EscrowID == uuid.Nil {
		return nil, errs.New(errs.ErrInvalidOperation, "order requires buyer, seller and escrow")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, errs.New(errs.ErrInvalidOperation, "order title is required")
	}
	if !p.Amount.IsPositive() {
		return nil, errs.New(errs.ErrInvalidOperation, "order amount must be positive, got %s", p.Amount)
	}
	zero, err := money.Zero(p.Amount.Currency)
	if err != nil {
		return nil, err
	}
	o := &Order{
		ID:           uuid.New(),
		BuyerID:      p.BuyerID,
		SellerID:     p.SellerID,
		EscrowID:     p.EscrowID,
		Title:        title,
		Description:  strings.TrimSpace(p.Description),
		Amount:       p.Amount,
		Status:       StatusCreated,
		FrozenAmount: zero,
	}
	if len(p.ImageURLs) > 0 {
		b, err := json.Marshal(p.ImageURLs)
		if err != nil {
			return nil, err
		}
		o.ImageURLs = datatypes.JSON(b)
	}
	o.DeliveryAddress = optional(p.DeliveryAddress)
	o.DeliveryNotes = optional(p.DeliveryNotes)
	return o, nil
}

func (o *Order) IsSellerRequest() bool { return o.BuyerID == o.SellerID }

func (o *Order) IsBuyer(userID uuid.UUID) bool  { return userID != uuid.Nil && o.BuyerID == userID }
func (o *Order) IsSeller(userID uuid.UUID) bool { return userID != uuid.Nil && o.SellerID == userID }

// Images decodes ImageURLs; malformed data yields nil.
func (o *Order) Images() []string {
	if len(o.ImageURLs) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(o.ImageURLs, &out); err != nil {
		return nil
	}
	return out
}

func (o *Order) MarkPaymentPending() error {
	if err := o.check(ActionMarkPaymentPending); err != nil {
		return err
	}
	o.Status = StatusPaymentPending
	return nil
}

// ConfirmPayment records that the buyer's wallet already froze amount.
func (o *Order) ConfirmPayment(amount money.Money, now time.Time) error {
	if err := o.check(ActionConfirmPayment); err != nil {
		return err
	}
	if amount.Currency != o.Amount.Currency {
		return errs.New(errs.ErrCurrencyMismatch, "payment %s for %s order", amount.Currency, o.Amount.Currency)
	}
	if !amount.Equals(o.Amount) {
		return errs.New(errs.ErrInvalidOperation, "payment %s does not match order amount %s", amount, o.Amount)
	}
	o.Status = StatusPaymentConfirmed
	o.FrozenAmount = amount
	o.IsAmountFrozen = true
	o.PaymentDate = &now
	return nil
}

type ShipmentDetails struct {
	Courier        string
	TrackingNumber string
	ShippingProof  string
}

func (d ShipmentDetails) apply(o *Order) {
	if v := optional(d.Courier); v != nil {
		o.Courier = v
	}
	if v := optional(d.TrackingNumber); v != nil {
		o.TrackingNumber = v
	}
	if v := optional(d.ShippingProof); v != nil {
		o.ShippingProof = v
	}
}

// MarkAwaitingShipment records a booked parcel.
func (o *Order) MarkAwaitingShipment(d ShipmentDetails) error {
	if err := o.check(ActionMarkAwaitingShipment); err != nil {
		return err
	}
	d.apply(o)
	o.Status = StatusAwaitingShipment
	return nil
}

func (o *Order) MarkAsShipped(d ShipmentDetails, now time.Time) error {
	if err := o.check(ActionMarkAsShipped); err != nil {
		return err
	}
	d.apply(o)
	o.Status = StatusShipped
	o.ShippedDate = &now
	return nil
}

// MarkAsDelivered opens the buyer's decision window.
func (o *Order) MarkAsDelivered(now time.Time, window time.Duration, code string) error {
	if err := o.check(ActionMarkAsDelivered); err != nil {
		return err
	}
	if window <= 0 {
		return errs.New(errs.ErrInvalidOperation, "decision window must be positive")
	}
	expiry := now.Add(window)
	o.Status = StatusDeliveredPendingDecision
	o.DeliveredDate = &now
	o.DeliveryConfirmationExpiry = &expiry
	o.DeliveryConfirmationCode = optional(code)
	return nil
}

// CompleteOrder marks the buyer hold as consumed. The caller has already
// moved the frozen funds to the seller.
func (o *Order) CompleteOrder(now time.Time) error {
	if err := o.check(ActionComplete); err != nil {
		return err
	}
	if !o.IsAmountFrozen || !o.FrozenAmount.IsPositive() {
		return errs.New(errs.ErrInvalidStateTransition, "cannot complete order %s without frozen funds", o.ID)
	}
	o.Status = StatusCompleted
	o.IsAmountFrozen = false
	o.CompletedDate = &now
	return nil
}

func (o *Order) CancelOrder(reason string, now time.Time) error {
	if err := o.check(ActionCancel); err != nil {
		return err
	}
	o.Status = StatusCancelled
	o.CancelledDate = &now
	o.CancellationReason = optional(reason)
	o.releaseHold()
	return nil
}

func (o *Order) RejectOrder(reason string, now time.Time) error {
	if err := o.check(ActionReject); err != nil {
		return err
	}
	o.Status = StatusRejected
	o.RejectedDate = &now
	o.RejectionReason = optional(reason)
	o.releaseHold()
	return nil
}

func (o *Order) MarkAsDisputed() error {
	if err := o.check(ActionMarkAsDisputed); err != nil {
		return err
	}
	o.Status = StatusDisputed
	return nil
}

type Outcome string

const (
	OutcomeBuyer      Outcome = "buyer"
	OutcomeSeller     Outcome = "seller"
	OutcomeCompromise Outcome = "compromise"
)

// ResolveDispute closes a disputed order. A seller win completes the order;
// any outcome that refunds the buyer ends in StatusDisputeResolved.
func (o *Order) ResolveDispute(outcome Outcome, now time.Time) error {
	if err := o.check(ActionResolveDispute); err != nil {
		return err
	}
	switch outcome {
	case OutcomeSeller:
		o.Status = StatusCompleted
		o.CompletedDate = &now
	case OutcomeBuyer, OutcomeCompromise:
		o.Status = StatusDisputeResolved
	default:
		return errs.New(errs.ErrInvalidOperation, "unknown dispute outcome %q", outcome)
	}
	o.releaseHold()
	return nil
}

// IsExpired reports whether the buyer's decision window has lapsed.
func (o *Order) IsExpired(now time.Time) bool {
	if o.Status != StatusDeliveredPendingDecision || o.DeliveryConfirmationExpiry == nil {
		return false
	}
	return now.After(*o.DeliveryConfirmationExpiry)
}

func (o *Order) releaseHold() { o.IsAmountFrozen = false }

func (o *Order) check(action Action) error {
	if !CanTransition(o.Status, action) {
		return errs.Transition("order", string(action), string(o.Status))
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
