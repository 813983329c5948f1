package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/withdrawal"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WithdrawalRequest struct {
	Amount   string
	Currency string
	Channel  string
	Notes    string
}

type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (domainagg.WithdrawalResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error)
	ListMine(ctx context.Context, limit int) ([]*types.Withdrawal, error)

	// Admin operations reporting provider outcomes.
	SetPendingProvider(ctx context.Context, id uuid.UUID, channelReference string) (domainagg.WithdrawalResult, error)
	Settle(ctx context.Context, id uuid.UUID, channelReference string) (domainagg.WithdrawalResult, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (domainagg.WithdrawalResult, error)
}

type withdrawalService struct {
	log         *logger.Logger
	cfg         CommandConfig
	agg         domainagg.WithdrawalAggregate
	withdrawals repos.WithdrawalRepo
	notify      Notifier
}

func NewWithdrawalService(
	baseLog *logger.Logger,
	cfg CommandConfig,
	agg domainagg.WithdrawalAggregate,
	withdrawals repos.WithdrawalRepo,
	notify Notifier,
) WithdrawalService {
	if notify == nil {
		notify = NopNotifier()
	}
	return &withdrawalService{
		log:         baseLog.With("service", "WithdrawalService"),
		cfg:         cfg.withDefaults(),
		agg:         agg,
		withdrawals: withdrawals,
		notify:      notify,
	}
}

func (s *withdrawalService) Request(ctx context.Context, req WithdrawalRequest) (domainagg.WithdrawalResult, error) {
	const op = "WithdrawalService.Request"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	amount, err := parseAmount(op, s.cfg.Policy, req.Amount, req.Currency)
	if err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	if err := s.checkLimits(op, amount); err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	if !s.cfg.Policy.SupportsChannel(req.Channel) {
		return domainagg.WithdrawalResult{}, validation(op, "unsupported withdrawal channel "+req.Channel)
	}
	channel, err := withdrawal.ParseChannel(req.Channel)
	if err != nil {
		return domainagg.WithdrawalResult{}, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}

	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WithdrawalResult, error) {
		return s.agg.Request(ctx, domainagg.RequestWithdrawalInput{
			SellerID: actor.UserID,
			Amount:   amount,
			Channel:  channel,
			Notes:    strings.TrimSpace(req.Notes),
		})
	})
	if err != nil {
		return res, err
	}
	s.log.Info("withdrawal requested", "withdrawal_id", res.Withdrawal.ID, "reference", res.Withdrawal.Reference, "channel", string(channel))
	s.cfg.Metrics.AddSettlementAmount("withdrawal", amount.Currency, amountFloat(amount))
	s.notify.NotifyWithdrawalRequested(ctx, res.Withdrawal)
	return res, nil
}

func (s *withdrawalService) checkLimits(op string, amount money.Money) error {
	limits := s.cfg.Policy.Withdrawal
	if raw := strings.TrimSpace(limits.MinAmount); raw != "" {
		if min, err := decimal.NewFromString(raw); err == nil && amount.Amount.LessThan(min) {
			return validation(op, "amount is below the minimum withdrawal of "+min.String())
		}
	}
	if raw := strings.TrimSpace(limits.MaxAmount); raw != "" {
		if max, err := decimal.NewFromString(raw); err == nil && amount.Amount.GreaterThan(max) {
			return validation(op, "amount exceeds the maximum withdrawal of "+max.String())
		}
	}
	return nil
}

func (s *withdrawalService) Get(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error) {
	const op = "WithdrawalService.Get"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	w, err := s.withdrawals.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if w == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "withdrawal not found", nil)
	}
	if !actor.IsAdmin() && w.SellerID != actor.UserID {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not your withdrawal", nil)
	}
	return w, nil
}

func (s *withdrawalService) ListMine(ctx context.Context, limit int) ([]*types.Withdrawal, error) {
	const op = "WithdrawalService.ListMine"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	rows, err := s.withdrawals.ListBySeller(dbctx.Context{Ctx: ctx}, actor.UserID, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return rows, nil
}

func (s *withdrawalService) SetPendingProvider(ctx context.Context, id uuid.UUID, channelReference string) (domainagg.WithdrawalResult, error) {
	const op = "WithdrawalService.SetPendingProvider"
	if _, err := requireAdmin(ctx, op); err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	return runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WithdrawalResult, error) {
		return s.agg.SetPendingProvider(ctx, domainagg.WithdrawalProviderInput{WithdrawalID: id, ChannelReference: channelReference})
	})
}

func (s *withdrawalService) Settle(ctx context.Context, id uuid.UUID, channelReference string) (domainagg.WithdrawalResult, error) {
	const op = "WithdrawalService.Settle"
	if _, err := requireAdmin(ctx, op); err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WithdrawalResult, error) {
		return s.agg.Settle(ctx, domainagg.WithdrawalProviderInput{WithdrawalID: id, ChannelReference: channelReference})
	})
	if err != nil {
		return res, err
	}
	s.notify.NotifyWithdrawalSettled(ctx, res.Withdrawal)
	return res, nil
}

func (s *withdrawalService) Fail(ctx context.Context, id uuid.UUID, reason string) (domainagg.WithdrawalResult, error) {
	const op = "WithdrawalService.Fail"
	if _, err := requireAdmin(ctx, op); err != nil {
		return domainagg.WithdrawalResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WithdrawalResult, error) {
		return s.agg.Fail(ctx, domainagg.FailWithdrawalInput{WithdrawalID: id, Reason: reason})
	})
	if err != nil {
		return res, err
	}
	if res.Compensated {
		s.log.Info("withdrawal compensated", "withdrawal_id", id, "amount", res.Withdrawal.Amount.String())
		s.cfg.Metrics.AddSettlementAmount("withdrawal_refund", res.Withdrawal.Amount.Currency, amountFloat(res.Withdrawal.Amount))
		s.notify.NotifyWithdrawalFailed(ctx, res.Withdrawal)
	}
	return res, nil
}
