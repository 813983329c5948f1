package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type RaiseDisputeRequest struct {
	Reason      string
	Description string
	Evidence    string
}

type ResolveDisputeRequest struct {
	Resolution string
	Notes      string
	// Decimal string; required for compromise rulings. Currency follows the order.
	BuyerRefund string
}

type DisputeService interface {
	Raise(ctx context.Context, orderID uuid.UUID, req RaiseDisputeRequest) (domainagg.DisputeResult, error)
	AddEvidence(ctx context.Context, disputeID uuid.UUID, evidence string) (domainagg.DisputeResult, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*types.Dispute, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]*types.Dispute, error)

	// Admin operations.
	Escalate(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error)
	AddAdminNotes(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error)
	Resolve(ctx context.Context, disputeID uuid.UUID, req ResolveDisputeRequest) (domainagg.ResolveDisputeResult, error)
	Close(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error)
}

type disputeService struct {
	log      *logger.Logger
	cfg      CommandConfig
	agg      domainagg.DisputeAggregate
	disputes repos.DisputeRepo
	orders   repos.OrderRepo
	notify   Notifier
}

func NewDisputeService(
	baseLog *logger.Logger,
	cfg CommandConfig,
	agg domainagg.DisputeAggregate,
	disputes repos.DisputeRepo,
	orders repos.OrderRepo,
	notify Notifier,
) DisputeService {
	if notify == nil {
		notify = NopNotifier()
	}
	return &disputeService{
		log:      baseLog.With("service", "DisputeService"),
		cfg:      cfg.withDefaults(),
		agg:      agg,
		disputes: disputes,
		orders:   orders,
		notify:   notify,
	}
}

func (s *disputeService) Raise(ctx context.Context, orderID uuid.UUID, req RaiseDisputeRequest) (domainagg.DisputeResult, error) {
	const op = "DisputeService.Raise"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.DisputeResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.DisputeResult, error) {
		return s.agg.Raise(ctx, domainagg.RaiseDisputeInput{
			OrderID:     orderID,
			RaisedBy:    actor.UserID,
			Reason:      req.Reason,
			Description: req.Description,
			Evidence:    req.Evidence,
		})
	})
	if err != nil {
		return res, err
	}
	s.notify.NotifyDisputed(ctx, res.Order, res.Dispute)
	return res, nil
}

func (s *disputeService) AddEvidence(ctx context.Context, disputeID uuid.UUID, evidence string) (domainagg.DisputeResult, error) {
	const op = "DisputeService.AddEvidence"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.DisputeResult{}, err
	}
	if strings.TrimSpace(evidence) == "" {
		return domainagg.DisputeResult{}, validation(op, "evidence is required")
	}
	return runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.DisputeResult, error) {
		return s.agg.AddEvidence(ctx, domainagg.DisputeEvidenceInput{DisputeID: disputeID, ActorID: actor.UserID, Evidence: evidence})
	})
}

func (s *disputeService) Get(ctx context.Context, disputeID uuid.UUID) (*types.Dispute, error) {
	const op = "DisputeService.Get"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	d, err := s.disputes.GetByID(dbc, disputeID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if d == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "dispute not found", nil)
	}
	if actor.IsAdmin() {
		return d, nil
	}
	if err := s.requireParty(dbc, op, d.OrderID, actor.UserID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *disputeService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]*types.Dispute, error) {
	const op = "DisputeService.ListForOrder"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if !actor.IsAdmin() {
		if err := s.requireParty(dbc, op, orderID, actor.UserID); err != nil {
			return nil, err
		}
	}
	rows, err := s.disputes.ListByOrderID(dbc, orderID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return rows, nil
}

func (s *disputeService) Escalate(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error) {
	return s.admin(ctx, "DisputeService.Escalate", disputeID, notes, s.agg.Escalate)
}

func (s *disputeService) AddAdminNotes(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error) {
	return s.admin(ctx, "DisputeService.AddAdminNotes", disputeID, notes, s.agg.AddAdminNotes)
}

func (s *disputeService) Close(ctx context.Context, disputeID uuid.UUID, notes string) (domainagg.DisputeResult, error) {
	return s.admin(ctx, "DisputeService.Close", disputeID, notes, s.agg.Close)
}

func (s *disputeService) Resolve(ctx context.Context, disputeID uuid.UUID, req ResolveDisputeRequest) (domainagg.ResolveDisputeResult, error) {
	const op = "DisputeService.Resolve"
	admin, err := requireAdmin(ctx, op)
	if err != nil {
		return domainagg.ResolveDisputeResult{}, err
	}
	resolution := dispute.Resolution(strings.ToLower(strings.TrimSpace(req.Resolution)))
	if !resolution.Valid() {
		return domainagg.ResolveDisputeResult{}, validation(op, "unknown resolution "+req.Resolution)
	}
	in := domainagg.ResolveDisputeInput{
		DisputeID:  disputeID,
		AdminID:    admin.UserID,
		Resolution: resolution,
		Notes:      req.Notes,
	}
	if resolution == dispute.ResolutionCompromise {
		if !s.cfg.Policy.Dispute.AllowCompromise {
			return domainagg.ResolveDisputeResult{}, validation(op, "compromise rulings are disabled")
		}
		refund, err := s.compromiseRefund(ctx, op, disputeID, req.BuyerRefund)
		if err != nil {
			return domainagg.ResolveDisputeResult{}, err
		}
		in.BuyerRefund = &refund
	}

	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.ResolveDisputeResult, error) {
		return s.agg.Resolve(ctx, in)
	})
	if err != nil {
		return res, err
	}
	s.log.Info("dispute resolved",
		"dispute_id", res.Dispute.ID,
		"order_id", res.Order.ID,
		"resolution", string(resolution),
		"buyer_refund", res.BuyerRefund.String(),
		"seller_payout", res.SellerPayout.String(),
	)
	s.cfg.Metrics.AddSettlementAmount("dispute_refund", res.BuyerRefund.Currency, amountFloat(res.BuyerRefund))
	s.cfg.Metrics.AddSettlementAmount("dispute_payout", res.SellerPayout.Currency, amountFloat(res.SellerPayout))
	s.notify.NotifyDisputeResolved(ctx, res.Order, res.Dispute, res.BuyerRefund, res.SellerPayout)
	return res, nil
}

// compromiseRefund parses the refund in the disputed order's currency.
func (s *disputeService) compromiseRefund(ctx context.Context, op string, disputeID uuid.UUID, raw string) (money.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return money.Money{}, validation(op, "buyer_refund is required for a compromise")
	}
	dbc := dbctx.Context{Ctx: ctx}
	d, err := s.disputes.GetByID(dbc, disputeID)
	if err != nil {
		return money.Money{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if d == nil {
		return money.Money{}, domainagg.NewError(domainagg.CodeNotFound, op, "dispute not found", nil)
	}
	o, err := s.orders.GetByID(dbc, d.OrderID)
	if err != nil {
		return money.Money{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if o == nil {
		return money.Money{}, domainagg.NewError(domainagg.CodeNotFound, op, "order not found", nil)
	}
	return parseAmount(op, s.cfg.Policy, raw, o.Amount.Currency)
}

func (s *disputeService) admin(
	ctx context.Context,
	op string,
	disputeID uuid.UUID,
	notes string,
	call func(context.Context, domainagg.DisputeAdminInput) (domainagg.DisputeResult, error),
) (domainagg.DisputeResult, error) {
	admin, err := requireAdmin(ctx, op)
	if err != nil {
		return domainagg.DisputeResult{}, err
	}
	return runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.DisputeResult, error) {
		return call(ctx, domainagg.DisputeAdminInput{DisputeID: disputeID, AdminID: admin.UserID, Notes: notes})
	})
}

func (s *disputeService) requireParty(dbc dbctx.Context, op string, orderID, userID uuid.UUID) error {
	o, err := s.orders.GetByID(dbc, orderID)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if o == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, "order not found", nil)
	}
	if !o.IsBuyer(userID) && !o.IsSeller(userID) {
		return domainagg.NewError(domainagg.CodeForbidden, op, "not a party to this order", nil)
	}
	return nil
}
