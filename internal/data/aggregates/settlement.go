package aggregates

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/errs"
	"github.com/yungbote/escrow-backend/internal/domain/escrow"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

const (
	defaultDecisionWindow = 48 * time.Hour
	defaultCodeLength     = 6
)

type SettlementAggregateDeps struct {
	Base BaseDeps

	Wallets  repos.WalletRepo
	WalletTx repos.WalletTransactionRepo
	Orders   repos.OrderRepo
	Escrows  repos.EscrowRepo
	Disputes repos.DisputeRepo

	// DecisionWindow is how long a buyer has to accept or reject a delivery.
	DecisionWindow time.Duration
	CodeLength     int
}

type settlementAggregate struct {
	deps   SettlementAggregateDeps
	ledger ledger
}

func NewSettlementAggregate(deps SettlementAggregateDeps) domainagg.SettlementAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.DecisionWindow <= 0 {
		deps.DecisionWindow = defaultDecisionWindow
	}
	if deps.CodeLength <= 0 {
		deps.CodeLength = defaultCodeLength
	}
	return &settlementAggregate{
		deps:   deps,
		ledger: ledger{base: deps.Base, wallets: deps.Wallets, txs: deps.WalletTx},
	}
}

func (a *settlementAggregate) Contract() domainagg.Contract {
	return domainagg.SettlementAggregateContract
}

func (a *settlementAggregate) configured() bool {
	return a.ledger.ready() && a.deps.Orders != nil && a.deps.Escrows != nil && a.deps.Disputes != nil
}

func (a *settlementAggregate) CreateOrder(ctx context.Context, in domainagg.CreateOrderInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.CreateOrder"
	var out domainagg.OrderResult
	if in.BuyerID == uuid.Nil || in.SellerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "buyer_id and seller_id are required", nil)
	}
	if in.BuyerID == in.SellerID {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "buyer and seller must differ", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "settlement aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.openOrder(dbc, order.NewParams{
			BuyerID:         in.BuyerID,
			SellerID:        in.SellerID,
			Title:           in.Title,
			Description:     in.Description,
			Amount:          in.Amount,
			ImageURLs:       in.ImageURLs,
			DeliveryAddress: in.DeliveryAddress,
			DeliveryNotes:   in.DeliveryNotes,
		}, nil)
		if err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) CreateSellerRequest(ctx context.Context, in domainagg.CreateSellerRequestInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.CreateSellerRequest"
	var out domainagg.OrderResult
	if in.SellerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "seller_id is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "settlement aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.openOrder(dbc, order.NewParams{
			BuyerID:     in.SellerID,
			SellerID:    in.SellerID,
			Title:       in.Title,
			Description: in.Description,
			Amount:      in.Amount,
			ImageURLs:   in.ImageURLs,
		}, nil)
		if err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) AcceptSellerRequest(ctx context.Context, in domainagg.AcceptSellerRequestInput) (domainagg.AcceptSellerRequestResult, error) {
	const op = "Payments.Settlement.AcceptSellerRequest"
	var out domainagg.AcceptSellerRequestResult
	if in.RequestID == uuid.Nil || in.BuyerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "request_id and buyer_id are required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "settlement aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, reqEscrow, err := a.lockOrder(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if !req.IsSellerRequest() {
			return errs.New(errs.ErrInvalidOperation, "order %s is not a seller request", req.ID)
		}
		if req.Status != order.StatusCreated {
			return errs.Transition("seller request", "accept", string(req.Status))
		}
		if req.SellerID == in.BuyerID {
			return errs.New(errs.ErrInvalidOperation, "seller cannot accept their own request")
		}

		sourceID := req.ID
		o, e, err := a.openOrder(dbc, order.NewParams{
			BuyerID:         in.BuyerID,
			SellerID:        req.SellerID,
			Title:           req.Title,
			Description:     req.Description,
			Amount:          req.Amount,
			ImageURLs:       req.Images(),
			DeliveryAddress: in.DeliveryAddress,
			DeliveryNotes:   in.DeliveryNotes,
		}, &sourceID)
		if err != nil {
			return err
		}

		now := a.deps.Base.now()
		if err := req.CancelOrder(fmt.Sprintf("accepted as order %s", o.ID), now); err != nil {
			return err
		}
		if reqEscrow.CanCancel() {
			if err := reqEscrow.Cancel(now); err != nil {
				return err
			}
		}
		if err := a.saveOrderAndEscrow(dbc, req, reqEscrow); err != nil {
			return err
		}
		out = domainagg.AcceptSellerRequestResult{Order: *o, Escrow: *e, Request: *req}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) MarkPaymentPending(ctx context.Context, in domainagg.OrderActionInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.MarkPaymentPending"
	return a.buyerStep(ctx, op, in, func(o *types.Order, _ *types.Escrow) error {
		return o.MarkPaymentPending()
	})
}

func (a *settlementAggregate) PayOrder(ctx context.Context, in domainagg.OrderActionInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.PayOrder"
	var out domainagg.OrderResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if err := requireBuyer(op, o, in.ActorID); err != nil {
			return err
		}
		// Fail on state before touching the wallet so the caller sees the real cause.
		if !order.CanTransition(o.Status, order.ActionConfirmPayment) {
			return errs.Transition("order", string(order.ActionConfirmPayment), string(o.Status))
		}
		buyer, err := a.ledger.lockOrOpen(dbc, o.BuyerID, o.Amount.Currency)
		if err != nil {
			return err
		}
		hold, err := buyer.FreezeAmount(o.Amount, "payment for order "+o.ID.String(), orderRef(o.ID))
		if err != nil {
			return err
		}
		now := a.deps.Base.now()
		if err := o.ConfirmPayment(o.Amount, now); err != nil {
			return err
		}
		if err := e.Fund(now); err != nil {
			return err
		}
		if err := a.ledger.save(dbc, buyer, hold); err != nil {
			return err
		}
		if err := a.saveOrderAndEscrow(dbc, o, e); err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) MarkParcelBooked(ctx context.Context, in domainagg.ShipmentInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.MarkParcelBooked"
	return a.sellerStep(ctx, op, domainagg.OrderActionInput{OrderID: in.OrderID, ActorID: in.ActorID}, func(o *types.Order) error {
		return o.MarkAwaitingShipment(shipment(in))
	})
}

func (a *settlementAggregate) MarkShipped(ctx context.Context, in domainagg.ShipmentInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.MarkShipped"
	return a.sellerStep(ctx, op, domainagg.OrderActionInput{OrderID: in.OrderID, ActorID: in.ActorID}, func(o *types.Order) error {
		return o.MarkAsShipped(shipment(in), a.deps.Base.now())
	})
}

func (a *settlementAggregate) MarkDelivered(ctx context.Context, in domainagg.OrderActionInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.MarkDelivered"
	return a.sellerStep(ctx, op, in, a.deliver)
}

func (a *settlementAggregate) ConfirmDelivery(ctx context.Context, in domainagg.ConfirmDeliveryInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.ConfirmDelivery"
	var out domainagg.OrderResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if err := requireBuyer(op, o, in.ActorID); err != nil {
			return err
		}
		// A buyer confirming straight from shipped implies delivery. The code
		// is only checked once it has been issued to the buyer.
		if o.Status == order.StatusShipped {
			if err := a.deliver(o); err != nil {
				return err
			}
		} else if code := strings.TrimSpace(in.Code); code != "" && o.DeliveryConfirmationCode != nil {
			if subtle.ConstantTimeCompare([]byte(strings.ToUpper(code)), []byte(*o.DeliveryConfirmationCode)) != 1 {
				return errs.New(errs.ErrInvalidOperation, "delivery confirmation code does not match")
			}
		}
		if err := a.payout(dbc, o, e); err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) RejectDelivery(ctx context.Context, in domainagg.RejectDeliveryInput) (domainagg.RejectDeliveryResult, error) {
	const op = "Payments.Settlement.RejectDelivery"
	var out domainagg.RejectDeliveryResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if err := requireBuyer(op, o, in.ActorID); err != nil {
			return err
		}
		now := a.deps.Base.now()

		switch o.Status {
		case order.StatusShipped, order.StatusDeliveredPendingDecision:
			reason := strings.TrimSpace(in.Reason)
			if reason == "" {
				reason = "delivery rejected"
			}
			d, err := raiseDispute(dbc, a.deps.Disputes, o, e, in.ActorID, reason, in.Description, in.Evidence, now)
			if err != nil {
				return err
			}
			if err := a.saveOrderAndEscrow(dbc, o, e); err != nil {
				return err
			}
			out = domainagg.RejectDeliveryResult{Order: *o, Escrow: *e, RequiresAdmin: true, Dispute: d}
			return nil
		}

		held, frozen := o.IsAmountFrozen, o.FrozenAmount
		if err := o.RejectOrder(in.Reason, now); err != nil {
			return err
		}
		if held {
			if err := a.returnHold(dbc, o, frozen, "order rejected"); err != nil {
				return err
			}
		}
		if e.CanRefund() {
			if err := e.Refund(now); err != nil {
				return err
			}
		}
		if err := a.saveOrderAndEscrow(dbc, o, e); err != nil {
			return err
		}
		out = domainagg.RejectDeliveryResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) CancelOrder(ctx context.Context, in domainagg.CancelOrderInput) (domainagg.OrderResult, error) {
	const op = "Payments.Settlement.CancelOrder"
	var out domainagg.OrderResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if !in.IsAdmin && !o.IsBuyer(in.ActorID) && !o.IsSeller(in.ActorID) {
			return forbidden(op, "only the buyer, the seller or an admin can cancel an order")
		}
		now := a.deps.Base.now()
		held, frozen := o.IsAmountFrozen, o.FrozenAmount
		if err := o.CancelOrder(in.Reason, now); err != nil {
			return err
		}
		if held {
			if err := a.returnHold(dbc, o, frozen, "order cancelled"); err != nil {
				return err
			}
		}
		switch {
		case e.CanCancel():
			err = e.Cancel(now)
		case e.CanRefund():
			err = e.Refund(now)
		}
		if err != nil {
			return err
		}
		if err := a.saveOrderAndEscrow(dbc, o, e); err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func (a *settlementAggregate) AutoCompleteIfExpired(ctx context.Context, in domainagg.AutoCompleteInput) (domainagg.AutoCompleteResult, error) {
	const op = "Payments.Settlement.AutoCompleteIfExpired"
	var out domainagg.AutoCompleteResult
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "order_id is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "settlement aggregate repos not configured", nil)
	}
	now := in.Now.UTC()
	if in.Now.IsZero() {
		now = a.deps.Base.now()
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if !o.IsExpired(now) {
			out = domainagg.AutoCompleteResult{Order: *o}
			return nil
		}
		if err := a.payout(dbc, o, e); err != nil {
			return err
		}
		out = domainagg.AutoCompleteResult{Order: *o, Completed: true}
		return nil
	})
	return out, err
}

// openOrder creates a linked escrow and order pair.
func (a *settlementAggregate) openOrder(dbc dbctx.Context, p order.NewParams, sourceID *uuid.UUID) (*types.Order, *types.Escrow, error) {
	e, err := escrow.New(p.Amount, p.BuyerID, p.SellerID, p.Title, p.Description)
	if err != nil {
		return nil, nil, err
	}
	p.EscrowID = e.ID
	o, err := order.New(p)
	if err != nil {
		return nil, nil, err
	}
	o.SourceRequestID = sourceID
	if err := e.SetOrderID(o.ID); err != nil {
		return nil, nil, err
	}
	if _, err := a.deps.Escrows.Create(dbc, []*types.Escrow{e}); err != nil {
		return nil, nil, err
	}
	if _, err := a.deps.Orders.Create(dbc, []*types.Order{o}); err != nil {
		return nil, nil, err
	}
	return o, e, nil
}

// payout moves the buyer's hold to the seller, completes the order and releases the escrow.
func (a *settlementAggregate) payout(dbc dbctx.Context, o *types.Order, e *types.Escrow) error {
	if !order.CanTransition(o.Status, order.ActionComplete) {
		return errs.Transition("order", string(order.ActionComplete), string(o.Status))
	}
	if !o.IsAmountFrozen || !o.FrozenAmount.IsPositive() {
		return errs.New(errs.ErrInvalidStateTransition, "cannot complete order %s without frozen funds", o.ID)
	}
	amount := o.FrozenAmount
	buyer, seller, err := a.ledger.lockPair(dbc, o.BuyerID, o.SellerID, amount.Currency)
	if err != nil {
		return err
	}
	debit, err := buyer.TransferFrozenToDebit(amount, "payment released for order "+o.ID.String(), orderRef(o.ID))
	if err != nil {
		return err
	}
	credit, err := seller.Credit(amount, "payout for order "+o.ID.String(), orderRef(o.ID))
	if err != nil {
		return err
	}
	now := a.deps.Base.now()
	if err := o.CompleteOrder(now); err != nil {
		return err
	}
	if err := e.Release(now); err != nil {
		return err
	}
	if err := a.ledger.save(dbc, buyer, debit); err != nil {
		return err
	}
	if err := a.ledger.save(dbc, seller, credit); err != nil {
		return err
	}
	return a.saveOrderAndEscrow(dbc, o, e)
}

// returnHold unfreezes the buyer's hold on o.
func (a *settlementAggregate) returnHold(dbc dbctx.Context, o *types.Order, frozen types.Money, reason string) error {
	buyer, err := a.ledger.lock(dbc, o.BuyerID)
	if err != nil {
		return err
	}
	if buyer == nil {
		return missingWallet(o.BuyerID)
	}
	move, err := buyer.Unfreeze(frozen, reason+" "+o.ID.String(), orderRef(o.ID))
	if err != nil {
		return err
	}
	return a.ledger.save(dbc, buyer, move)
}

func (a *settlementAggregate) deliver(o *types.Order) error {
	code, err := order.NewConfirmationCode(a.deps.CodeLength)
	if err != nil {
		return err
	}
	return o.MarkAsDelivered(a.deps.Base.now(), a.deps.DecisionWindow, code)
}

func (a *settlementAggregate) lockOrder(dbc dbctx.Context, op string, id uuid.UUID) (*types.Order, *types.Escrow, error) {
	o, err := a.deps.Orders.LockByID(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	if err := requireFound(o, op, "order", id); err != nil {
		return nil, nil, err
	}
	e, err := a.deps.Escrows.LockByID(dbc, o.EscrowID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireFound(e, op, "escrow", o.EscrowID); err != nil {
		return nil, nil, err
	}
	return o, e, nil
}

func (a *settlementAggregate) saveOrderAndEscrow(dbc dbctx.Context, o *types.Order, e *types.Escrow) error {
	if err := saveOrder(dbc, a.deps.Orders, o); err != nil {
		return err
	}
	return saveEscrow(dbc, a.deps.Escrows, e)
}

func (a *settlementAggregate) checkAction(op string, orderID, actorID uuid.UUID) error {
	if orderID == uuid.Nil || actorID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "order_id and actor_id are required", nil)
	}
	if !a.configured() {
		return domainagg.NewError(domainagg.CodeInternal, op, "settlement aggregate repos not configured", nil)
	}
	return nil
}

// buyerStep runs a wallet-free transition that only the buyer may trigger.
func (a *settlementAggregate) buyerStep(ctx context.Context, op string, in domainagg.OrderActionInput, fn func(*types.Order, *types.Escrow) error) (domainagg.OrderResult, error) {
	var out domainagg.OrderResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if err := requireBuyer(op, o, in.ActorID); err != nil {
			return err
		}
		if err := fn(o, e); err != nil {
			return err
		}
		if err := saveOrder(dbc, a.deps.Orders, o); err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

// sellerStep runs a wallet-free fulfilment transition that only the seller may trigger.
func (a *settlementAggregate) sellerStep(ctx context.Context, op string, in domainagg.OrderActionInput, fn func(*types.Order) error) (domainagg.OrderResult, error) {
	var out domainagg.OrderResult
	if err := a.checkAction(op, in.OrderID, in.ActorID); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		o, e, err := a.lockOrder(dbc, op, in.OrderID)
		if err != nil {
			return err
		}
		if !o.IsSeller(in.ActorID) {
			return forbidden(op, "only the seller can update fulfilment")
		}
		if o.IsSellerRequest() {
			return errs.New(errs.ErrInvalidOperation, "seller request %s has no buyer yet", o.ID)
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := saveOrder(dbc, a.deps.Orders, o); err != nil {
			return err
		}
		out = domainagg.OrderResult{Order: *o, Escrow: *e}
		return nil
	})
	return out, err
}

func requireBuyer(op string, o *types.Order, actorID uuid.UUID) error {
	if !o.IsBuyer(actorID) {
		return forbidden(op, "only the buyer can perform this action")
	}
	if o.IsSellerRequest() {
		return errs.New(errs.ErrInvalidOperation, "seller request %s has no buyer yet", o.ID)
	}
	return nil
}

func saveOrder(dbc dbctx.Context, r repos.OrderRepo, o *types.Order) error {
	ok, err := r.UpdateVersioned(dbc, o)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("order %s changed concurrently", o.ID))
}

func shipment(in domainagg.ShipmentInput) order.ShipmentDetails {
	return order.ShipmentDetails{
		Courier:        in.Courier,
		TrackingNumber: in.TrackingNumber,
		ShippingProof:  in.ShippingProof,
	}
}
