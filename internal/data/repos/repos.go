package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/data/repos/orders"
	"github.com/yungbote/escrow-backend/internal/data/repos/outbox"
	"github.com/yungbote/escrow-backend/internal/data/repos/payments"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WalletRepo = payments.WalletRepo
type WalletTransactionRepo = payments.WalletTransactionRepo
type WithdrawalRepo = payments.WithdrawalRepo

type OrderRepo = orders.OrderRepo
type OrderListFilter = orders.OrderListFilter
type EscrowRepo = orders.EscrowRepo
type DisputeRepo = orders.DisputeRepo

type OutboxMessageRepo = outbox.MessageRepo

func NewWalletRepo(db *gorm.DB, baseLog *logger.Logger) WalletRepo {
	return payments.NewWalletRepo(db, baseLog)
}

func NewWalletTransactionRepo(db *gorm.DB, baseLog *logger.Logger) WalletTransactionRepo {
	return payments.NewWalletTransactionRepo(db, baseLog)
}

func NewWithdrawalRepo(db *gorm.DB, baseLog *logger.Logger) WithdrawalRepo {
	return payments.NewWithdrawalRepo(db, baseLog)
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return orders.NewOrderRepo(db, baseLog)
}

func NewEscrowRepo(db *gorm.DB, baseLog *logger.Logger) EscrowRepo {
	return orders.NewEscrowRepo(db, baseLog)
}

func NewDisputeRepo(db *gorm.DB, baseLog *logger.Logger) DisputeRepo {
	return orders.NewDisputeRepo(db, baseLog)
}

func NewOutboxMessageRepo(db *gorm.DB, baseLog *logger.Logger) OutboxMessageRepo {
	return outbox.NewMessageRepo(db, baseLog)
}

// Set bundles every table repo for wiring.
type Set struct {
	Wallets      WalletRepo
	WalletTx     WalletTransactionRepo
	Withdrawals  WithdrawalRepo
	Orders       OrderRepo
	Escrows      EscrowRepo
	Disputes     DisputeRepo
	OutboxEvents OutboxMessageRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Wallets:      NewWalletRepo(db, baseLog),
		WalletTx:     NewWalletTransactionRepo(db, baseLog),
		Withdrawals:  NewWithdrawalRepo(db, baseLog),
		Orders:       NewOrderRepo(db, baseLog),
		Escrows:      NewEscrowRepo(db, baseLog),
		Disputes:     NewDisputeRepo(db, baseLog),
		OutboxEvents: NewOutboxMessageRepo(db, baseLog),
	}
}
