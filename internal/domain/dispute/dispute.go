// Package dispute records a contested order and the admin's ruling on it.
package dispute

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
	StatusClosed    Status = "closed"
)

type Resolution string

const (
	ResolutionInFavorOfBuyer  Resolution = "in_favor_of_buyer"
	ResolutionInFavorOfSeller Resolution = "in_favor_of_seller"
	ResolutionCompromise      Resolution = "compromise"
)

func (r Resolution) Valid() bool {
	return r == ResolutionInFavorOfBuyer || r == ResolutionInFavorOfSeller || r == ResolutionCompromise
}

type Dispute struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	RaisedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"raised_by_id"`

	Reason      string  `gorm:"column:reason;not null" json:"reason"`
	Description string  `gorm:"column:description" json:"description,omitempty"`
	Evidence    *string `gorm:"column:evidence" json:"evidence,omitempty"`
	AdminNotes  *string `gorm:"column:admin_notes" json:"admin_notes,omitempty"`

	Status     Status      `gorm:"column:status;not null;index" json:"status"`
	Resolution *Resolution `gorm:"column:resolution" json:"resolution,omitempty"`

	// Portion of the frozen amount returned to the buyer. Zero unless the
	// resolution is a compromise.
	BuyerRefund money.Money `gorm:"embedded;embeddedPrefix:buyer_refund_" json:"buyer_refund"`

	ResolvedAt   *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ResolvedByID *uuid.UUID `gorm:"type:uuid;column:resolved_by_id" json:"resolved_by_id,omitempty"`

	// One-way: funds for this dispute have been moved.
	Settled   bool       `gorm:"column:settled;not null" json:"settled"`
	SettledAt *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Dispute) TableName() string { return "dispute" }

func (d *Dispute) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// New opens a dispute. currency sizes the zero BuyerRefund.
func New(orderID, raisedBy uuid.UUID, reason, description, evidence, currency string) (*Dispute, error) {
	if orderID == uuid.Nil || raisedBy == uuid.Nil {
		return nil, errs.New(errs.ErrInvalidOperation, "dispute requires order and raiser")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.New(errs.ErrInvalidOperation, "dispute reason is required")
	}
	zero, err := money.Zero(currency)
	if err != nil {
		return nil, err
	}
	d := &Dispute{
		ID:          uuid.New(),
		OrderID:     orderID,
		RaisedByID:  raisedBy,
		Reason:      reason,
		Description: strings.TrimSpace(description),
		Status:      StatusOpen,
		BuyerRefund: zero,
	}
	if ev := strings.TrimSpace(evidence); ev != "" {
		d.Evidence = &ev
	}
	return d, nil
}

func (d *Dispute) IsActive() bool { return d.Status == StatusOpen || d.Status == StatusEscalated }

func (d *Dispute) Escalate() error {
	if d.Status != StatusOpen {
		return errs.Transition("dispute", "escalate", string(d.Status))
	}
	d.Status = StatusEscalated
	return nil
}

// AddEvidence appends to the evidence trail while the dispute is active.
func (d *Dispute) AddEvidence(evidence string) error {
	if !d.IsActive() {
		return errs.Transition("dispute", "add evidence to", string(d.Status))
	}
	d.Evidence = appendLine(d.Evidence, evidence)
	return nil
}

func (d *Dispute) AddAdminNotes(notes string) error {
	if d.Status == StatusClosed {
		return errs.Transition("dispute", "annotate", string(d.Status))
	}
	d.AdminNotes = appendLine(d.AdminNotes, notes)
	return nil
}

// Resolve records the ruling. buyerRefund is only read for compromises and
// must lie strictly between zero and frozen.
func (d *Dispute) Resolve(adminID uuid.UUID, resolution Resolution, notes string, buyerRefund, frozen money.Money, now time.Time) error {
	if !d.IsActive() {
		return errs.Transition("dispute", "resolve", string(d.Status))
	}
	if adminID == uuid.Nil {
		return errs.New(errs.ErrUnauthorized, "dispute resolution requires an admin")
	}
	if !resolution.Valid() {
		return errs.New(errs.ErrInvalidOperation, "unknown resolution %q", resolution)
	}
	if resolution == ResolutionCompromise {
		if buyerRefund.Currency != frozen.Currency {
			return errs.New(errs.ErrCurrencyMismatch, "refund %s against %s hold", buyerRefund.Currency, frozen.Currency)
		}
		if !buyerRefund.IsPositive() || buyerRefund.Amount.GreaterThanOrEqual(frozen.Amount) {
			return errs.New(errs.ErrInvalidOperation, "compromise refund %s must be between 0 and %s", buyerRefund, frozen)
		}
		d.BuyerRefund = buyerRefund
	}
	r := resolution
	admin := adminID
	d.Status = StatusResolved
	d.Resolution = &r
	d.ResolvedAt = &now
	d.ResolvedByID = &admin
	if n := strings.TrimSpace(notes); n != "" {
		d.AdminNotes = appendLine(d.AdminNotes, n)
	}
	return nil
}

// MarkSettled flips the one-way settlement flag. A second call fails so a
// retried resolution can never move funds twice.
func (d *Dispute) MarkSettled(now time.Time) error {
	if d.Status != StatusResolved {
		return errs.Transition("dispute", "settle", string(d.Status))
	}
	if d.Settled {
		return errs.New(errs.ErrInvalidStateTransition, "dispute %s already settled", d.ID)
	}
	d.Settled = true
	d.SettledAt = &now
	return nil
}

func (d *Dispute) Close() error {
	if d.Status != StatusResolved {
		return errs.Transition("dispute", "close", string(d.Status))
	}
	d.Status = StatusClosed
	return nil
}

func appendLine(cur *string, add string) *string {
	add = strings.TrimSpace(add)
	if add == "" {
		return cur
	}
	if cur == nil || *cur == "" {
		return &add
	}
	joined := *cur + "\n" + add
	return &joined
}
