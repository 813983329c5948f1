package domain

import (
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/domain/withdrawal"
)

type Money = money.Money

type Wallet = wallet.Wallet
type WalletTransaction = wallet.Transaction
type WalletReference = wallet.Reference

type Escrow = escrow.Escrow
type EscrowStatus = escrow.Status

type Order = order.Order
type OrderStatus = order.Status

type Dispute = dispute.Dispute
type DisputeResolution = dispute.Resolution

type Withdrawal = withdrawal.Withdrawal
type WithdrawalChannel = withdrawal.Channel

type OutboxMessage = outbox.Message

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Wallet{},
		&WalletTransaction{},
		&Escrow{},
		&Order{},
		&Dispute{},
		&Withdrawal{},
		&OutboxMessage{},
	}
}
