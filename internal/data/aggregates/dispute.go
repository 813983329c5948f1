package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/domain/wallet"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

type DisputeAggregateDeps struct {
	Base BaseDeps

	Wallets  repos.WalletRepo
	WalletTx repos.WalletTransactionRepo
	Orders   repos.OrderRepo
	Escrows  repos.EscrowRepo
	Disputes repos.DisputeRepo
}

type disputeAggregate struct {
	deps   DisputeAggregateDeps
	ledger ledger
}

func NewDisputeAggregate(deps DisputeAggregateDeps) domainagg.DisputeAggregate {
	deps.Base = deps.Base.withDefaults()
	return &disputeAggregate{
		deps:   deps,
		ledger: ledger{base: deps.Base, wallets: deps.Wallets, txs: deps.WalletTx},
	}
}

func (a *disputeAggregate) Contract() domainagg.Contract {
	return domainagg.DisputeAggregateContract
}

func (a *disputeAggregate) configured() bool {
	return a.ledger.ready() && a.deps.Orders != nil && a.deps.Escrows != nil && a.deps.Disputes != nil
}

func (a *disputeAggregate) Raise(ctx context.Context, in domainagg.RaiseDisputeInput) (domainagg.DisputeResult, error) {
	const op = "Payments.Dispute.Raise"
	var out domainagg.DisputeResult
	if in.OrderID == uuid.Nil || in.RaisedBy == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "order_id and raised_by are required", nil)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "reason is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "dispute aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, err := a.deps.Orders.LockByID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if err := requireFound(o, op, "order", in.OrderID); err != nil {
			return err
		}
		if !o.IsBuyer(in.RaisedBy) && !o.IsSeller(in.RaisedBy) {
			return forbidden(op, "only the buyer or the seller can raise a dispute")
		}
		e, err := a.deps.Escrows.LockByID(dbc, o.EscrowID)
		if err != nil {
			return err
		}
		if err := requireFound(e, op, "escrow", o.EscrowID); err != nil {
			return err
		}
		d, err := raiseDispute(dbc, a.deps.Disputes, o, e, in.RaisedBy, in.Reason, in.Description, in.Evidence, a.deps.Base.now())
		if err != nil {
			return err
		}
		if err := saveOrder(dbc, a.deps.Orders, o); err != nil {
			return err
		}
		if err := saveEscrow(dbc, a.deps.Escrows, e); err != nil {
			return err
		}
		out = domainagg.DisputeResult{Dispute: *d, Order: *o}
		return nil
	})
	return out, err
}

func (a *disputeAggregate) AddEvidence(ctx context.Context, in domainagg.DisputeEvidenceInput) (domainagg.DisputeResult, error) {
	const op = "Payments.Dispute.AddEvidence"
	if in.ActorID == uuid.Nil || strings.TrimSpace(in.Evidence) == "" {
		return domainagg.DisputeResult{}, domainagg.NewError(domainagg.CodeValidation, op, "actor_id and evidence are required", nil)
	}
	return a.annotate(ctx, op, in.DisputeID, func(d *types.Dispute, o *types.Order) error {
		if !o.IsBuyer(in.ActorID) && !o.IsSeller(in.ActorID) {
			return forbidden(op, "only the buyer or the seller can add evidence")
		}
		return d.AddEvidence(in.Evidence)
	})
}

func (a *disputeAggregate) Escalate(ctx context.Context, in domainagg.DisputeAdminInput) (domainagg.DisputeResult, error) {
	const op = "Payments.Dispute.Escalate"
	if in.AdminID == uuid.Nil {
		return domainagg.DisputeResult{}, domainagg.NewError(domainagg.CodeValidation, op, "admin_id is required", nil)
	}
	return a.annotate(ctx, op, in.DisputeID, func(d *types.Dispute, _ *types.Order) error {
		if err := d.Escalate(); err != nil {
			return err
		}
		return d.AddAdminNotes(in.Notes)
	})
}

func (a *disputeAggregate) AddAdminNotes(ctx context.Context, in domainagg.DisputeAdminInput) (domainagg.DisputeResult, error) {
	const op = "Payments.Dispute.AddAdminNotes"
	if in.AdminID == uuid.Nil || strings.TrimSpace(in.Notes) == "" {
		return domainagg.DisputeResult{}, domainagg.NewError(domainagg.CodeValidation, op, "admin_id and notes are required", nil)
	}
	return a.annotate(ctx, op, in.DisputeID, func(d *types.Dispute, _ *types.Order) error {
		return d.AddAdminNotes(in.Notes)
	})
}

func (a *disputeAggregate) Close(ctx context.Context, in domainagg.DisputeAdminInput) (domainagg.DisputeResult, error) {
	const op = "Payments.Dispute.Close"
	if in.AdminID == uuid.Nil {
		return domainagg.DisputeResult{}, domainagg.NewError(domainagg.CodeValidation, op, "admin_id is required", nil)
	}
	return a.annotate(ctx, op, in.DisputeID, func(d *types.Dispute, _ *types.Order) error {
		if err := d.AddAdminNotes(in.Notes); err != nil {
			return err
		}
		return d.Close()
	})
}

func (a *disputeAggregate) Resolve(ctx context.Context, in domainagg.ResolveDisputeInput) (domainagg.ResolveDisputeResult, error) {
	const op = "Payments.Dispute.Resolve"
	var out domainagg.ResolveDisputeResult
	if in.DisputeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "dispute_id is required", nil)
	}
	if in.AdminID == uuid.Nil {
		return out, forbidden(op, "dispute resolution requires an admin")
	}
	if !in.Resolution.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown resolution %q", in.Resolution), nil)
	}
	if in.Resolution == dispute.ResolutionCompromise && in.BuyerRefund == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "compromise requires buyer_refund", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "dispute aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		d, err := a.deps.Disputes.LockByID(dbc, in.DisputeID)
		if err != nil {
			return err
		}
		if err := requireFound(d, op, "dispute", in.DisputeID); err != nil {
			return err
		}
		if d.Settled {
			return errs.New(errs.ErrInvalidStateTransition, "dispute %s already settled", d.ID)
		}
		o, err := a.deps.Orders.LockByID(dbc, d.OrderID)
		if err != nil {
			return err
		}
		if err := requireFound(o, op, "order", d.OrderID); err != nil {
			return err
		}
		e, err := a.deps.Escrows.LockByID(dbc, o.EscrowID)
		if err != nil {
			return err
		}
		if err := requireFound(e, op, "escrow", o.EscrowID); err != nil {
			return err
		}

		now := a.deps.Base.now()
		held, frozen := o.IsAmountFrozen, o.FrozenAmount
		// With the hold already returned there is nothing left to pay out.
		if !held && in.Resolution != dispute.ResolutionInFavorOfBuyer {
			return errs.New(errs.ErrInvalidStateTransition,
				"order %s holds no funds; only %s can resolve dispute %s", o.ID, dispute.ResolutionInFavorOfBuyer, d.ID)
		}
		if !held {
			frozen, err = money.Zero(o.Amount.Currency)
			if err != nil {
				return err
			}
		}
		refund := frozen
		if in.BuyerRefund != nil {
			refund = *in.BuyerRefund
		}
		if err := d.Resolve(in.AdminID, in.Resolution, in.Notes, refund, frozen, now); err != nil {
			return err
		}

		split, err := splitHold(in.Resolution, frozen, refund)
		if err != nil {
			return err
		}
		if held {
			if err := a.settleHold(dbc, o, d, split); err != nil {
				return err
			}
		}

		if err := o.ResolveDispute(outcomeOf(in.Resolution), now); err != nil {
			return err
		}
		switch {
		case in.Resolution == dispute.ResolutionInFavorOfBuyer && e.CanRefund():
			err = e.Refund(now)
		case in.Resolution != dispute.ResolutionInFavorOfBuyer && e.CanRelease():
			err = e.Release(now)
		}
		if err != nil {
			return err
		}
		if err := d.MarkSettled(now); err != nil {
			return err
		}

		if err := saveDispute(dbc, a.deps.Disputes, d); err != nil {
			return err
		}
		if err := saveOrder(dbc, a.deps.Orders, o); err != nil {
			return err
		}
		if err := saveEscrow(dbc, a.deps.Escrows, e); err != nil {
			return err
		}
		out = domainagg.ResolveDisputeResult{
			Dispute:      *d,
			Order:        *o,
			Escrow:       *e,
			BuyerRefund:  split.refund,
			SellerPayout: split.payout,
		}
		return nil
	})
	return out, err
}

// holdSplit is how a frozen hold divides between the two parties.
type holdSplit struct {
	refund money.Money
	payout money.Money
}

func splitHold(r types.DisputeResolution, frozen, refund money.Money) (holdSplit, error) {
	zero, err := money.Zero(frozen.Currency)
	if err != nil {
		return holdSplit{}, err
	}
	switch r {
	case dispute.ResolutionInFavorOfBuyer:
		return holdSplit{refund: frozen, payout: zero}, nil
	case dispute.ResolutionInFavorOfSeller:
		return holdSplit{refund: zero, payout: frozen}, nil
	}
	payout, err := frozen.Subtract(refund)
	if err != nil {
		return holdSplit{}, err
	}
	return holdSplit{refund: refund, payout: payout}, nil
}

// settleHold releases the refund part back to the buyer and pays the rest to the seller.
func (a *disputeAggregate) settleHold(dbc dbctx.Context, o *types.Order, d *types.Dispute, s holdSplit) error {
	ref := wallet.Reference{Type: wallet.RefDispute, ID: d.ID}
	if !s.payout.IsPositive() {
		buyer, err := a.ledger.lock(dbc, o.BuyerID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return missingWallet(o.BuyerID)
		}
		move, err := buyer.Unfreeze(s.refund, "dispute refund for order "+o.ID.String(), ref)
		if err != nil {
			return err
		}
		return a.ledger.save(dbc, buyer, move)
	}

	buyer, seller, err := a.ledger.lockPair(dbc, o.BuyerID, o.SellerID, s.payout.Currency)
	if err != nil {
		return err
	}
	var moves []*types.WalletTransaction
	if s.refund.IsPositive() {
		move, err := buyer.Unfreeze(s.refund, "dispute refund for order "+o.ID.String(), ref)
		if err != nil {
			return err
		}
		moves = append(moves, move)
	}
	debit, err := buyer.TransferFrozenToDebit(s.payout, "dispute payout for order "+o.ID.String(), ref)
	if err != nil {
		return err
	}
	moves = append(moves, debit)
	credit, err := seller.Credit(s.payout, "dispute payout for order "+o.ID.String(), ref)
	if err != nil {
		return err
	}
	if err := a.ledger.save(dbc, buyer, moves...); err != nil {
		return err
	}
	return a.ledger.save(dbc, seller, credit)
}

// annotate applies a fund-free dispute change under lock.
func (a *disputeAggregate) annotate(ctx context.Context, op string, disputeID uuid.UUID, fn func(*types.Dispute, *types.Order) error) (domainagg.DisputeResult, error) {
	var out domainagg.DisputeResult
	if disputeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "dispute_id is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "dispute aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		d, err := a.deps.Disputes.LockByID(dbc, disputeID)
		if err != nil {
			return err
		}
		if err := requireFound(d, op, "dispute", disputeID); err != nil {
			return err
		}
		o, err := a.deps.Orders.GetByID(dbc, d.OrderID)
		if err != nil {
			return err
		}
		if err := requireFound(o, op, "order", d.OrderID); err != nil {
			return err
		}
		if err := fn(d, o); err != nil {
			return err
		}
		if err := saveDispute(dbc, a.deps.Disputes, d); err != nil {
			return err
		}
		out = domainagg.DisputeResult{Dispute: *d, Order: *o}
		return nil
	})
	return out, err
}

// raiseDispute opens a dispute on o and moves o (and a funded e) into the
// disputed state. The caller persists o and e.
func raiseDispute(dbc dbctx.Context, disputes repos.DisputeRepo, o *types.Order, e *types.Escrow, raisedBy uuid.UUID, reason, description, evidence string, now time.Time) (*types.Dispute, error) {
	active, err := disputes.GetActiveByOrderID(dbc, o.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errs.New(errs.ErrInvalidOperation, "order %s already has an active dispute", o.ID)
	}
	if err := o.MarkAsDisputed(); err != nil {
		return nil, err
	}
	if e.CanDispute() {
		if err := e.Dispute(now); err != nil {
			return nil, err
		}
	}
	d, err := dispute.New(o.ID, raisedBy, reason, description, evidence, o.Amount.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := disputes.Create(dbc, []*types.Dispute{d}); err != nil {
		return nil, err
	}
	return d, nil
}

func outcomeOf(r types.DisputeResolution) order.Outcome {
	switch r {
	case dispute.ResolutionInFavorOfBuyer:
		return order.OutcomeBuyer
	case dispute.ResolutionInFavorOfSeller:
		return order.OutcomeSeller
	}
	return order.OutcomeCompromise
}

func saveEscrow(dbc dbctx.Context, r repos.EscrowRepo, e *types.Escrow) error {
	ok, err := r.UpdateVersioned(dbc, e)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("escrow %s changed concurrently", e.ID))
}

func saveDispute(dbc dbctx.Context, r repos.DisputeRepo, d *types.Dispute) error {
	ok, err := r.UpdateVersioned(dbc, d)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("dispute %s changed concurrently", d.ID))
}
