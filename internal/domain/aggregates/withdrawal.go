package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/money"
)

var WithdrawalAggregateContract = Contract{
	Name:      "Payments.WithdrawalAggregate",
	Writes:    []string{"withdrawal", "wallet", "wallet_transaction"},
	LockOrder: []string{"withdrawal", "wallet"},
	Notes:     "Wallet debit with its withdrawal record, and exactly-once failure compensation.",
}

// WithdrawalAggregate owns payout invariants.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodePreconditionFailed, CodeRetryable, CodeInternal.
type WithdrawalAggregate interface {
	Aggregate

	// Request debits the seller's wallet and records an initiated withdrawal.
	Request(ctx context.Context, in RequestWithdrawalInput) (WithdrawalResult, error)

	// SetPendingProvider records the provider hand-off.
	SetPendingProvider(ctx context.Context, in WithdrawalProviderInput) (WithdrawalResult, error)

	// Settle marks the payout as completed by the provider.
	Settle(ctx context.Context, in WithdrawalProviderInput) (WithdrawalResult, error)

	// Fail marks the payout failed and credits the wallet back once.
	Fail(ctx context.Context, in FailWithdrawalInput) (WithdrawalResult, error)
}

type RequestWithdrawalInput struct {
	SellerID uuid.UUID
	Amount   money.Money
	Channel  types.WithdrawalChannel
	Notes    string
}

type WithdrawalProviderInput struct {
	WithdrawalID     uuid.UUID
	ChannelReference string
}

type FailWithdrawalInput struct {
	WithdrawalID uuid.UUID
	Reason       string
}

type WithdrawalResult struct {
	Withdrawal types.Withdrawal
	Wallet     types.Wallet
	// True when this call returned funds to the wallet.
	Compensated bool
}
