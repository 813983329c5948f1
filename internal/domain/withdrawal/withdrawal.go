// Package withdrawal models a seller payout to an external channel.
//
// The wallet is debited when the withdrawal is requested. A failed payout is
// compensated by crediting the wallet back, exactly once.
package withdrawal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

type Status string

const (
	StatusInitiated       Status = "initiated"
	StatusPendingProvider Status = "pending_provider"
	StatusSettled         Status = "settled"
	StatusFailed          Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusSettled || s == StatusFailed }

type Channel string

const (
	ChannelJazzCash     Channel = "jazzcash"
	ChannelEasypaisa    Channel = "easypaisa"
	ChannelBankTransfer Channel = "bank_transfer"
)

func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChannelJazzCash, ChannelEasypaisa, ChannelBankTransfer:
		return c, nil
	}
	return "", errs.New(errs.ErrInvalidOperation, "unknown withdrawal channel %q", s)
}

type Withdrawal struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	WalletID uuid.UUID `gorm:"type:uuid;not null;index" json:"wallet_id"`

	Amount money.Money `gorm:"embedded;embeddedPrefix:amount_" json:"amount"`

	Channel          Channel `gorm:"column:channel;not null" json:"channel"`
	ChannelReference *string `gorm:"column:channel_reference" json:"channel_reference,omitempty"`
	Reference        string  `gorm:"column:reference;not null;uniqueIndex" json:"reference"`

	Status Status `gorm:"column:status;not null;index" json:"status"`

	RequestedAt   time.Time  `gorm:"column:requested_at;not null" json:"requested_at"`
	SettledAt     *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
	FailedAt      *time.Time `gorm:"column:failed_at" json:"failed_at,omitempty"`
	FailureReason *string    `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	Notes         *string    `gorm:"column:notes" json:"notes,omitempty"`

	// One-way: the wallet has been credited back after a failure.
	Compensated   bool       `gorm:"column:compensated;not null" json:"compensated"`
	CompensatedAt *time.Time `gorm:"column:compensated_at" json:"compensated_at,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Withdrawal) TableName() string { return "withdrawal" }

func (w *Withdrawal) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// NewReference returns a payout reference: the request time plus a random
// suffix, so requests in the same clock tick do not collide.
func NewReference(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("WD%d-%s", now.UnixNano(), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}

func New(sellerID, walletID uuid.UUID, amount money.Money, channel Channel, notes string, now time.Time) (*Withdrawal, error) {
	if sellerID == uuid.Nil || walletID == uuid.Nil {
		return nil, errs.New(errs.ErrInvalidOperation, "withdrawal requires seller and wallet")
	}
	if !amount.IsPositive() {
		return nil, errs.New(errs.ErrInvalidOperation, "withdrawal amount must be positive, got %s", amount)
	}
	if _, err := ParseChannel(string(channel)); err != nil {
		return nil, err
	}
	ref, err := NewReference(now)
	if err != nil {
		return nil, err
	}
	w := &Withdrawal{
		ID:          uuid.New(),
		SellerID:    sellerID,
		WalletID:    walletID,
		Amount:      amount,
		Channel:     channel,
		Reference:   ref,
		Status:      StatusInitiated,
		RequestedAt: now,
	}
	if n := strings.TrimSpace(notes); n != "" {
		w.Notes = &n
	}
	return w, nil
}

func (w *Withdrawal) SetPendingProvider(channelReference string) error {
	if w.Status != StatusInitiated {
		return errs.Transition("withdrawal", "hand off", string(w.Status))
	}
	w.Status = StatusPendingProvider
	w.setChannelReference(channelReference)
	return nil
}

func (w *Withdrawal) SetSettled(channelReference string, now time.Time) error {
	if w.Status != StatusInitiated && w.Status != StatusPendingProvider {
		return errs.Transition("withdrawal", "settle", string(w.Status))
	}
	w.Status = StatusSettled
	w.SettledAt = &now
	w.setChannelReference(channelReference)
	return nil
}

// SetFailed moves the withdrawal to failed. The caller then credits the
// wallet and calls MarkCompensated.
func (w *Withdrawal) SetFailed(reason string, now time.Time) error {
	if w.Status != StatusInitiated && w.Status != StatusPendingProvider {
		return errs.Transition("withdrawal", "fail", string(w.Status))
	}
	w.Status = StatusFailed
	w.FailedAt = &now
	if r := strings.TrimSpace(reason); r != "" {
		w.FailureReason = &r
	}
	return nil
}

// NeedsCompensation is true for a failed withdrawal whose funds have not
// been returned yet.
func (w *Withdrawal) NeedsCompensation() bool {
	return w.Status == StatusFailed && !w.Compensated
}

func (w *Withdrawal) MarkCompensated(now time.Time) error {
	if !w.NeedsCompensation() {
		return errs.New(errs.ErrInvalidStateTransition, "withdrawal %s does not need compensation (status %s, compensated %v)", w.ID, w.Status, w.Compensated)
	}
	w.Compensated = true
	w.CompensatedAt = &now
	return nil
}

func (w *Withdrawal) setChannelReference(ref string) {
	if r := strings.TrimSpace(ref); r != "" {
		w.ChannelReference = &r
	}
}
