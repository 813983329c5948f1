package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WalletMoveRequest struct {
	Amount   string
	Currency string
	Reason   string
}

type WalletService interface {
	// Mine returns the caller's wallet, opening one in the default currency on first use.
	Mine(ctx context.Context) (*types.Wallet, error)
	Transactions(ctx context.Context, limit, offset int) ([]*types.WalletTransaction, int64, error)

	// Admin operations.
	TopUp(ctx context.Context, userID uuid.UUID, req WalletMoveRequest) (domainagg.WalletResult, error)
	Adjust(ctx context.Context, userID uuid.UUID, req WalletMoveRequest) (domainagg.WalletResult, error)
}

type walletService struct {
	log     *logger.Logger
	cfg     CommandConfig
	agg     domainagg.WalletAggregate
	wallets repos.WalletRepo
	txs     repos.WalletTransactionRepo
}

func NewWalletService(
	baseLog *logger.Logger,
	cfg CommandConfig,
	agg domainagg.WalletAggregate,
	wallets repos.WalletRepo,
	txs repos.WalletTransactionRepo,
) WalletService {
	return &walletService{
		log:     baseLog.With("service", "WalletService"),
		cfg:     cfg.withDefaults(),
		agg:     agg,
		wallets: wallets,
		txs:     txs,
	}
}

func (s *walletService) Mine(ctx context.Context) (*types.Wallet, error) {
	const op = "WalletService.Mine"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	if w, err := s.wallets.GetByUserID(dbctx.Context{Ctx: ctx}, actor.UserID); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	} else if w != nil {
		return w, nil
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WalletResult, error) {
		return s.agg.Ensure(ctx, domainagg.EnsureWalletInput{UserID: actor.UserID, Currency: s.cfg.Policy.DefaultCurrency()})
	})
	if err != nil {
		return nil, err
	}
	return &res.Wallet, nil
}

func (s *walletService) Transactions(ctx context.Context, limit, offset int) ([]*types.WalletTransaction, int64, error) {
	const op = "WalletService.Transactions"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, 0, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	w, err := s.wallets.GetByUserID(dbc, actor.UserID)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if w == nil {
		return []*types.WalletTransaction{}, 0, nil
	}
	rows, total, err := s.txs.ListByWallet(dbc, w.ID, limit, offset)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return rows, total, nil
}

func (s *walletService) TopUp(ctx context.Context, userID uuid.UUID, req WalletMoveRequest) (domainagg.WalletResult, error) {
	const op = "WalletService.TopUp"
	admin, err := requireAdmin(ctx, op)
	if err != nil {
		return domainagg.WalletResult{}, err
	}
	amount, err := parseAmount(op, s.cfg.Policy, req.Amount, req.Currency)
	if err != nil {
		return domainagg.WalletResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WalletResult, error) {
		return s.agg.TopUp(ctx, domainagg.WalletCreditInput{
			UserID:  userID,
			ActorID: admin.UserID,
			Amount:  amount,
			Reason:  strings.TrimSpace(req.Reason),
		})
	})
	if err != nil {
		return res, err
	}
	s.log.Info("wallet topped up", "user_id", userID, "admin_id", admin.UserID, "amount", amount.String())
	s.cfg.Metrics.AddSettlementAmount("top_up", amount.Currency, amountFloat(amount))
	return res, nil
}

func (s *walletService) Adjust(ctx context.Context, userID uuid.UUID, req WalletMoveRequest) (domainagg.WalletResult, error) {
	const op = "WalletService.Adjust"
	admin, err := requireAdmin(ctx, op)
	if err != nil {
		return domainagg.WalletResult{}, err
	}
	amount, err := parseAmount(op, s.cfg.Policy, req.Amount, req.Currency)
	if err != nil {
		return domainagg.WalletResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.WalletResult, error) {
		return s.agg.Adjust(ctx, domainagg.WalletAdjustInput{
			UserID:  userID,
			AdminID: admin.UserID,
			Amount:  amount,
			Reason:  strings.TrimSpace(req.Reason),
		})
	})
	if err != nil {
		return res, err
	}
	s.log.Info("wallet adjusted", "user_id", userID, "admin_id", admin.UserID, "amount", amount.String())
	return res, nil
}
