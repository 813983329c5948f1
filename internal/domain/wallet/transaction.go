package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/domain/money"
)

type TransactionType string

const (
	TxCredit        TransactionType = "credit"
	TxDebit         TransactionType = "debit"
	TxFreeze        TransactionType = "freeze"
	TxUnfreeze      TransactionType = "unfreeze"
	TxFrozenToDebit TransactionType = "frozen_to_debit"
)

const (
	RefOrder      = "order"
	RefWithdrawal = "withdrawal"
	RefDispute    = "dispute"
	RefTopUp      = "top_up"
	RefAdjustment = "adjustment"
)

// Reference ties a wallet movement to the business record that caused it.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// Transaction is an append-only ledger row written for every wallet mutation.
type Transaction struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID uuid.UUID       `gorm:"type:uuid;not null;index:idx_wallet_tx_wallet_created,priority:1" json:"wallet_id"`
	Type     TransactionType `gorm:"column:type;not null;index" json:"type"`

	Amount money.Money `gorm:"embedded;embeddedPrefix:tx_" json:"amount"`
	Reason string      `gorm:"column:reason" json:"reason,omitempty"`

	// order|withdrawal|dispute|top_up|adjustment
	ReferenceType string     `gorm:"column:reference_type;index:idx_wallet_tx_reference,priority:1" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid;column:reference_id;index:idx_wallet_tx_reference,priority:2" json:"reference_id,omitempty"`

	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(20,4);not null" json:"balance_after"`
	FrozenAfter  decimal.Decimal `gorm:"column:frozen_after;type:numeric(20,4);not null" json:"frozen_after"`

	CreatedAt time.Time `gorm:"not null;index:idx_wallet_tx_wallet_created,priority:2" json:"created_at"`
}

func (Transaction) TableName() string { return "wallet_transaction" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
