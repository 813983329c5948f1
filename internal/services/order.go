package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// DeliveryScheduler arms the auto-complete timer for a delivered order.
type DeliveryScheduler interface {
	ScheduleAutoComplete(ctx context.Context, orderID uuid.UUID, deadline time.Time) error
}

type CreateOrderRequest struct {
	SellerID        uuid.UUID
	Title           string
	Description     string
	Amount          string
	Currency        string
	ImageURLs       []string
	DeliveryAddress string
	DeliveryNotes   string
}

type SellerRequestRequest struct {
	Title       string
	Description string
	Amount      string
	Currency    string
	ImageURLs   []string
}

type AcceptRequestRequest struct {
	DeliveryAddress string
	DeliveryNotes   string
}

type ShipmentRequest struct {
	Courier        string
	TrackingNumber string
	ShippingProof  string
}

type RejectRequest struct {
	Reason      string
	Description string
	Evidence    string
}

type ListOrdersRequest struct {
	// "buyer", "seller" or empty for both sides.
	Role     string
	Statuses []string
	Limit    int
	Offset   int
}

type OrderService interface {
	Create(ctx context.Context, req CreateOrderRequest) (domainagg.OrderResult, error)
	CreateSellerRequest(ctx context.Context, req SellerRequestRequest) (domainagg.OrderResult, error)
	AcceptSellerRequest(ctx context.Context, requestID uuid.UUID, req AcceptRequestRequest) (domainagg.AcceptSellerRequestResult, error)
	MarkPaymentPending(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error)
	Pay(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error)
	MarkParcelBooked(ctx context.Context, orderID uuid.UUID, req ShipmentRequest) (domainagg.OrderResult, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID, req ShipmentRequest) (domainagg.OrderResult, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error)
	ConfirmDelivery(ctx context.Context, orderID uuid.UUID, code string) (domainagg.OrderResult, error)
	Reject(ctx context.Context, orderID uuid.UUID, req RejectRequest) (domainagg.RejectDeliveryResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (domainagg.OrderResult, error)

	// AutoComplete is the system path fired when a decision window lapses.
	AutoComplete(ctx context.Context, orderID uuid.UUID, now time.Time) (domainagg.AutoCompleteResult, error)

	Get(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]*types.Order, int64, error)
}

type orderService struct {
	log        *logger.Logger
	cfg        CommandConfig
	settlement domainagg.SettlementAggregate
	orders     repos.OrderRepo
	notify     Notifier
	scheduler  DeliveryScheduler
}

func NewOrderService(
	baseLog *logger.Logger,
	cfg CommandConfig,
	settlement domainagg.SettlementAggregate,
	orders repos.OrderRepo,
	notify Notifier,
	scheduler DeliveryScheduler,
) OrderService {
	if notify == nil {
		notify = NopNotifier()
	}
	return &orderService{
		log:        baseLog.With("service", "OrderService"),
		cfg:        cfg.withDefaults(),
		settlement: settlement,
		orders:     orders,
		notify:     notify,
		scheduler:  scheduler,
	}
}

func (s *orderService) Create(ctx context.Context, req CreateOrderRequest) (domainagg.OrderResult, error) {
	const op = "OrderService.Create"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	amount, err := parseAmount(op, s.cfg.Policy, req.Amount, req.Currency)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return s.settlement.CreateOrder(ctx, domainagg.CreateOrderInput{
			BuyerID:         actor.UserID,
			SellerID:        req.SellerID,
			Title:           req.Title,
			Description:     req.Description,
			Amount:          amount,
			ImageURLs:       req.ImageURLs,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryNotes:   req.DeliveryNotes,
		})
	})
	if err != nil {
		return res, err
	}
	s.log.Info("order created", "order_id", res.Order.ID, "escrow_id", res.Escrow.ID)
	s.notify.NotifyOrderCreated(ctx, res.Order)
	return res, nil
}

func (s *orderService) CreateSellerRequest(ctx context.Context, req SellerRequestRequest) (domainagg.OrderResult, error) {
	const op = "OrderService.CreateSellerRequest"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	amount, err := parseAmount(op, s.cfg.Policy, req.Amount, req.Currency)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return s.settlement.CreateSellerRequest(ctx, domainagg.CreateSellerRequestInput{
			SellerID:    actor.UserID,
			Title:       req.Title,
			Description: req.Description,
			Amount:      amount,
			ImageURLs:   req.ImageURLs,
		})
	})
	if err != nil {
		return res, err
	}
	s.notify.NotifyOrderCreated(ctx, res.Order)
	return res, nil
}

func (s *orderService) AcceptSellerRequest(ctx context.Context, requestID uuid.UUID, req AcceptRequestRequest) (domainagg.AcceptSellerRequestResult, error) {
	const op = "OrderService.AcceptSellerRequest"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.AcceptSellerRequestResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.AcceptSellerRequestResult, error) {
		return s.settlement.AcceptSellerRequest(ctx, domainagg.AcceptSellerRequestInput{
			RequestID:       requestID,
			BuyerID:         actor.UserID,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryNotes:   req.DeliveryNotes,
		})
	})
	if err != nil {
		return res, err
	}
	s.notify.NotifyOrderCreated(ctx, res.Order)
	s.notify.NotifyCancelled(ctx, res.Request)
	return res, nil
}

func (s *orderService) MarkPaymentPending(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error) {
	const op = "OrderService.MarkPaymentPending"
	res, err := s.action(ctx, op, orderID, s.settlement.MarkPaymentPending)
	if err != nil {
		return res, err
	}
	s.notify.NotifyPaymentPending(ctx, res.Order)
	return res, nil
}

func (s *orderService) Pay(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error) {
	const op = "OrderService.Pay"
	res, err := s.action(ctx, op, orderID, s.settlement.PayOrder)
	if err != nil {
		return res, err
	}
	s.cfg.Metrics.AddSettlementAmount("freeze", res.Order.FrozenAmount.Currency, amountFloat(res.Order.FrozenAmount))
	s.notify.NotifyPaymentConfirmed(ctx, res.Order)
	return res, nil
}

func (s *orderService) MarkParcelBooked(ctx context.Context, orderID uuid.UUID, req ShipmentRequest) (domainagg.OrderResult, error) {
	const op = "OrderService.MarkParcelBooked"
	res, err := s.shipment(ctx, op, orderID, req, s.settlement.MarkParcelBooked)
	if err != nil {
		return res, err
	}
	s.notify.NotifyParcelBooked(ctx, res.Order)
	return res, nil
}

func (s *orderService) MarkShipped(ctx context.Context, orderID uuid.UUID, req ShipmentRequest) (domainagg.OrderResult, error) {
	const op = "OrderService.MarkShipped"
	res, err := s.shipment(ctx, op, orderID, req, s.settlement.MarkShipped)
	if err != nil {
		return res, err
	}
	s.notify.NotifyShipped(ctx, res.Order)
	return res, nil
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (domainagg.OrderResult, error) {
	const op = "OrderService.MarkDelivered"
	res, err := s.action(ctx, op, orderID, s.settlement.MarkDelivered)
	if err != nil {
		return res, err
	}
	s.schedule(ctx, res.Order)
	s.notify.NotifyDelivered(ctx, res.Order)
	return res, nil
}

func (s *orderService) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, code string) (domainagg.OrderResult, error) {
	const op = "OrderService.ConfirmDelivery"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return s.settlement.ConfirmDelivery(ctx, domainagg.ConfirmDeliveryInput{
			OrderID: orderID,
			ActorID: actor.UserID,
			Code:    strings.TrimSpace(code),
		})
	})
	if err != nil {
		return res, err
	}
	s.cfg.Metrics.AddSettlementAmount("payout", res.Order.Amount.Currency, amountFloat(res.Order.Amount))
	s.notify.NotifyCompleted(ctx, res.Order)
	return res, nil
}

func (s *orderService) Reject(ctx context.Context, orderID uuid.UUID, req RejectRequest) (domainagg.RejectDeliveryResult, error) {
	const op = "OrderService.Reject"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.RejectDeliveryResult{}, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domainagg.RejectDeliveryResult{}, validation(op, "reason is required")
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.RejectDeliveryResult, error) {
		return s.settlement.RejectDelivery(ctx, domainagg.RejectDeliveryInput{
			OrderID:     orderID,
			ActorID:     actor.UserID,
			Reason:      req.Reason,
			Description: req.Description,
			Evidence:    req.Evidence,
		})
	})
	if err != nil {
		return res, err
	}
	if res.RequiresAdmin && res.Dispute != nil {
		s.log.Info("late rejection escalated to dispute", "order_id", res.Order.ID, "dispute_id", res.Dispute.ID)
		s.notify.NotifyDisputed(ctx, res.Order, *res.Dispute)
		return res, nil
	}
	s.cfg.Metrics.AddSettlementAmount("refund", res.Order.FrozenAmount.Currency, amountFloat(res.Order.FrozenAmount))
	s.notify.NotifyRejected(ctx, res.Order)
	return res, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (domainagg.OrderResult, error) {
	const op = "OrderService.Cancel"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return s.settlement.CancelOrder(ctx, domainagg.CancelOrderInput{
			OrderID: orderID,
			ActorID: actor.UserID,
			IsAdmin: actor.IsAdmin(),
			Reason:  reason,
		})
	})
	if err != nil {
		return res, err
	}
	if res.Order.PaymentDate != nil {
		s.cfg.Metrics.AddSettlementAmount("refund", res.Order.FrozenAmount.Currency, amountFloat(res.Order.FrozenAmount))
	}
	s.notify.NotifyCancelled(ctx, res.Order)
	return res, nil
}

func (s *orderService) AutoComplete(ctx context.Context, orderID uuid.UUID, now time.Time) (domainagg.AutoCompleteResult, error) {
	const op = "OrderService.AutoComplete"
	res, err := runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.AutoCompleteResult, error) {
		return s.settlement.AutoCompleteIfExpired(ctx, domainagg.AutoCompleteInput{OrderID: orderID, Now: now})
	})
	if err != nil || !res.Completed {
		return res, err
	}
	s.log.Info("order auto-completed", "order_id", orderID)
	s.cfg.Metrics.IncAutoCompleted()
	s.cfg.Metrics.AddSettlementAmount("payout", res.Order.Amount.Currency, amountFloat(res.Order.Amount))
	s.notify.NotifyCompleted(ctx, res.Order)
	return res, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	const op = "OrderService.Get"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(dbctx.Context{Ctx: ctx}, orderID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if o == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "order not found", nil)
	}
	// An open seller request is shared with prospective buyers.
	openRequest := o.IsSellerRequest() && o.Status == order.StatusCreated
	if !actor.IsAdmin() && !o.IsBuyer(actor.UserID) && !o.IsSeller(actor.UserID) && !openRequest {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not a party to this order", nil)
	}
	return o, nil
}

func (s *orderService) List(ctx context.Context, req ListOrdersRequest) ([]*types.Order, int64, error) {
	const op = "OrderService.List"
	actor, err := requireActor(ctx, op)
	if err != nil {
		return nil, 0, err
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != "" && role != "buyer" && role != "seller" {
		return nil, 0, validation(op, "role must be buyer or seller")
	}
	filter := repos.OrderListFilter{UserID: actor.UserID, Role: role, Limit: req.Limit, Offset: req.Offset}
	for _, raw := range req.Statuses {
		st := order.Status(strings.ToLower(strings.TrimSpace(raw)))
		if st == "" {
			continue
		}
		if !st.Valid() {
			return nil, 0, validation(op, "unknown status "+raw)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	rows, total, err := s.orders.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return rows, total, nil
}

func (s *orderService) action(
	ctx context.Context,
	op string,
	orderID uuid.UUID,
	call func(context.Context, domainagg.OrderActionInput) (domainagg.OrderResult, error),
) (domainagg.OrderResult, error) {
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	return runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return call(ctx, domainagg.OrderActionInput{OrderID: orderID, ActorID: actor.UserID})
	})
}

func (s *orderService) shipment(
	ctx context.Context,
	op string,
	orderID uuid.UUID,
	req ShipmentRequest,
	call func(context.Context, domainagg.ShipmentInput) (domainagg.OrderResult, error),
) (domainagg.OrderResult, error) {
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domainagg.OrderResult{}, err
	}
	return runCommand(ctx, s.log, s.cfg, op, func(ctx context.Context) (domainagg.OrderResult, error) {
		return call(ctx, domainagg.ShipmentInput{
			OrderID:        orderID,
			ActorID:        actor.UserID,
			Courier:        strings.TrimSpace(req.Courier),
			TrackingNumber: strings.TrimSpace(req.TrackingNumber),
			ShippingProof:  strings.TrimSpace(req.ShippingProof),
		})
	})
}

// schedule arms the decision-window timer. Failure is not fatal: the
// delivery sweeper picks up any expired order it finds.
func (s *orderService) schedule(ctx context.Context, o types.Order) {
	if s.scheduler == nil || o.DeliveryConfirmationExpiry == nil {
		return
	}
	if err := s.scheduler.ScheduleAutoComplete(ctx, o.ID, *o.DeliveryConfirmationExpiry); err != nil {
		s.log.Warn("auto-complete schedule failed; sweeper will handle it", "order_id", o.ID, "error", err)
	}
}
