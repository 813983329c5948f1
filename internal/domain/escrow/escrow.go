// Package escrow models the holding record that sits between a buyer's frozen
// funds and the seller's payout for one order.
package escrow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusFunded    Status = "funded"
	StatusReleased  Status = "released"
	StatusDisputed  Status = "disputed"
	StatusRefunded  Status = "refunded"
	StatusCompleted Status = "completed" // stored-data compatibility; never entered
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRefunded, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Escrow struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Amount money.Money `gorm:"embedded;embeddedPrefix:amount_" json:"amount"`

	BuyerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description" json:"description,omitempty"`

	Status  Status     `gorm:"column:status;not null;index" json:"status"`
	OrderID *uuid.UUID `gorm:"type:uuid;column:order_id;index" json:"order_id,omitempty"`

	FundedAt      *time.Time `gorm:"column:funded_at" json:"funded_at,omitempty"`
	ReleasedAt    *time.Time `gorm:"column:released_at" json:"released_at,omitempty"`
	RefundedAt    *time.Time `gorm:"column:refunded_at" json:"refunded_at,omitempty"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	DisputedAt    *time.Time `gorm:"column:disputed_at" json:"disputed_at,omitempty"`
	CompletedDate *time.Time `gorm:"column:completed_date" json:"completed_date,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Escrow) TableName() string { return "escrow" }

func (e *Escrow) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// New returns an escrow in StatusCreated.
func New(amount money.Money, buyerID, sellerID uuid.UUID, title, description string) (*Escrow, error) {
	if !amount.IsPositive() {
		return nil, errs.New(errs.ErrInvalidOperation, "escrow amount must be positive, got %s", amount)
	}
	if buyerID == uuid.Nil || sellerID == uuid.Nil {
		return nil, errs.New(errs.ErrInvalidOperation, "escrow requires buyer and seller")
	}
	return &Escrow{
		ID:          uuid.New(),
		Amount:      amount,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Title:       title,
		Description: description,
		Status:      StatusCreated,
	}, nil
}

func (e *Escrow) CanRefund() bool {
	switch e.Status {
	case StatusCreated, StatusFunded, StatusDisputed:
		return true
	}
	return false
}

func (e *Escrow) CanRelease() bool {
	return e.Status == StatusFunded || e.Status == StatusDisputed
}

func (e *Escrow) CanCancel() bool { return e.Status == StatusCreated }

func (e *Escrow) CanDispute() bool { return e.Status == StatusFunded }

func (e *Escrow) Fund(now time.Time) error {
	if e.Status != StatusCreated {
		return errs.Transition("escrow", "fund", string(e.Status))
	}
	e.Status = StatusFunded
	e.FundedAt = &now
	return nil
}

func (e *Escrow) Release(now time.Time) error {
	if !e.CanRelease() {
		return errs.Transition("escrow", "release", string(e.Status))
	}
	e.Status = StatusReleased
	e.ReleasedAt = &now
	return nil
}

func (e *Escrow) Refund(now time.Time) error {
	if !e.CanRefund() {
		return errs.Transition("escrow", "refund", string(e.Status))
	}
	e.Status = StatusRefunded
	e.RefundedAt = &now
	return nil
}

func (e *Escrow) Cancel(now time.Time) error {
	if !e.CanCancel() {
		return errs.Transition("escrow", "cancel", string(e.Status))
	}
	e.Status = StatusCancelled
	e.CancelledAt = &now
	return nil
}

func (e *Escrow) Dispute(now time.Time) error {
	if !e.CanDispute() {
		return errs.Transition("escrow", "dispute", string(e.Status))
	}
	e.Status = StatusDisputed
	e.DisputedAt = &now
	return nil
}

// SetOrderID links the escrow to its order. The link is permanent.
func (e *Escrow) SetOrderID(orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return errs.New(errs.ErrInvalidOperation, "escrow %s: order id is required", e.ID)
	}
	if e.OrderID != nil {
		if *e.OrderID == orderID {
			return nil
		}
		return errs.New(errs.ErrInvalidOperation, "escrow %s already linked to order %s", e.ID, *e.OrderID)
	}
	id := orderID
	e.OrderID = &id
	return nil
}
