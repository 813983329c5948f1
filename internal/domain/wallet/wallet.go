package wallet

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

// Wallet holds a user's balance and the part of it earmarked by freezes.
// Frozen funds stay inside Balance; they only stop counting as available.
type Wallet struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	Balance       money.Money `gorm:"embedded;embeddedPrefix:balance_" json:"balance"`
	FrozenBalance money.Money `gorm:"embedded;embeddedPrefix:frozen_" json:"frozen_balance"`

	IsActive bool `gorm:"column:is_active;not null" json:"is_active"`

	// Optimistic concurrency token; bumped on every persisted mutation.
	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallet" }

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// New returns an active, empty wallet for userID.
func New(userID uuid.UUID, currency string) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, errs.New(errs.ErrInvalidOperation, "wallet requires a user")
	}
	zero, err := money.Zero(currency)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Balance:       zero,
		FrozenBalance: zero,
		IsActive:      true,
	}, nil
}

func (w *Wallet) Currency() string { return w.Balance.Currency }

// AvailableBalance is Balance minus FrozenBalance.
func (w *Wallet) AvailableBalance() money.Money {
	return money.Money{Amount: w.Balance.Amount.Sub(w.FrozenBalance.Amount), Currency: w.Balance.Currency}
}

// HasSufficientFunds reports whether amount fits in the available balance.
func (w *Wallet) HasSufficientFunds(amount money.Money) bool {
	if amount.Currency != w.Currency() {
		return false
	}
	return w.AvailableBalance().Amount.GreaterThanOrEqual(amount.Amount)
}

func (w *Wallet) Credit(amount money.Money, reason string, ref Reference) (*Transaction, error) {
	if err := w.checkMutation(amount, "credit"); err != nil {
		return nil, err
	}
	w.Balance = money.Money{Amount: w.Balance.Amount.Add(amount.Amount), Currency: w.Currency()}
	return w.record(TxCredit, amount, reason, ref), nil
}

func (w *Wallet) Debit(amount money.Money, reason string, ref Reference) (*Transaction, error) {
	if err := w.checkMutation(amount, "debit"); err != nil {
		return nil, err
	}
	if !w.HasSufficientFunds(amount) {
		return nil, errs.New(errs.ErrInsufficientFunds, "debit %s exceeds available %s", amount, w.AvailableBalance())
	}
	w.Balance = money.Money{Amount: w.Balance.Amount.Sub(amount.Amount), Currency: w.Currency()}
	return w.record(TxDebit, amount, reason, ref), nil
}

func (w *Wallet) FreezeAmount(amount money.Money, reason string, ref Reference) (*Transaction, error) {
	if err := w.checkMutation(amount, "freeze"); err != nil {
		return nil, err
	}
	if !w.HasSufficientFunds(amount) {
		return nil, errs.New(errs.ErrInsufficientFunds, "freeze %s exceeds available %s", amount, w.AvailableBalance())
	}
	w.FrozenBalance = money.Money{Amount: w.FrozenBalance.Amount.Add(amount.Amount), Currency: w.Currency()}
	return w.record(TxFreeze, amount, reason, ref), nil
}

func (w *Wallet) Unfreeze(amount money.Money, reason string, ref Reference) (*Transaction, error) {
	if err := w.checkMutation(amount, "unfreeze"); err != nil {
		return nil, err
	}
	if amount.Amount.GreaterThan(w.FrozenBalance.Amount) {
		return nil, errs.New(errs.ErrInvalidOperation, "unfreeze %s exceeds frozen %s", amount, w.FrozenBalance)
	}
	w.FrozenBalance = money.Money{Amount: w.FrozenBalance.Amount.Sub(amount.Amount), Currency: w.Currency()}
	return w.record(TxUnfreeze, amount, reason, ref), nil
}

// TransferFrozenToDebit turns a hold into a permanent deduction: both the
// frozen and total balances drop by amount.
func (w *Wallet) TransferFrozenToDebit(amount money.Money, reason string, ref Reference) (*Transaction, error) {
	if err := w.checkMutation(amount, "transfer frozen funds from"); err != nil {
		return nil, err
	}
	if amount.Amount.GreaterThan(w.FrozenBalance.Amount) {
		return nil, errs.New(errs.ErrInvalidOperation, "transfer %s exceeds frozen %s", amount, w.FrozenBalance)
	}
	w.FrozenBalance = money.Money{Amount: w.FrozenBalance.Amount.Sub(amount.Amount), Currency: w.Currency()}
	w.Balance = money.Money{Amount: w.Balance.Amount.Sub(amount.Amount), Currency: w.Currency()}
	return w.record(TxFrozenToDebit, amount, reason, ref), nil
}

// CheckInvariants verifies 0 <= frozen <= balance.
func (w *Wallet) CheckInvariants() error {
	switch {
	case w.Balance.IsNegative():
		return errs.New(errs.ErrInvalidOperation, "wallet %s balance is negative", w.ID)
	case w.FrozenBalance.IsNegative():
		return errs.New(errs.ErrInvalidOperation, "wallet %s frozen balance is negative", w.ID)
	case w.FrozenBalance.Amount.GreaterThan(w.Balance.Amount):
		return errs.New(errs.ErrInvalidOperation, "wallet %s frozen balance exceeds balance", w.ID)
	case w.Balance.Currency != w.FrozenBalance.Currency:
		return errs.New(errs.ErrCurrencyMismatch, "wallet %s balances disagree on currency", w.ID)
	}
	return nil
}

func (w *Wallet) checkMutation(amount money.Money, action string) error {
	if !w.IsActive {
		return errs.New(errs.ErrInvalidOperation, "cannot %s inactive wallet %s", action, w.ID)
	}
	if !amount.IsPositive() {
		return errs.New(errs.ErrInvalidOperation, "%s amount must be positive, got %s", action, amount)
	}
	if amount.Currency != w.Currency() {
		return errs.New(errs.ErrCurrencyMismatch, "%s %s against %s wallet", action, amount.Currency, w.Currency())
	}
	return nil
}

func (w *Wallet) record(typ TransactionType, amount money.Money, reason string, ref Reference) *Transaction {
	tx := &Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		Type:          typ,
		Amount:        amount,
		Reason:        reason,
		ReferenceType: ref.Type,
		BalanceAfter:  w.Balance.Amount,
		FrozenAfter:   w.FrozenBalance.Amount,
	}
	if ref.ID != uuid.Nil {
		id := ref.ID
		tx.ReferenceID = &id
	}
	return tx
}
