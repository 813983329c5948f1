package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

func newOrderSvc(agg *fakeSettlement, notify Notifier, sched DeliveryScheduler) OrderService {
	return NewOrderService(logger.Nop(), testConfig(), agg, nil, notify, sched)
}

func TestPayRetriesConflictsThenNotifiesOnce(t *testing.T) {
	agg := &fakeSettlement{
		errs:   []error{aggErr(domainagg.CodeConflict), aggErr(domainagg.CodeRetryable)},
		result: domainagg.OrderResult{Order: types.Order{ID: uuid.New(), Status: order.StatusPaymentConfirmed}},
	}
	notify := newRecordingNotifier()
	svc := newOrderSvc(agg, notify, nil)

	buyer := uuid.New()
	orderID := uuid.New()
	res, err := svc.Pay(asUser(buyer), orderID)
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if agg.calls != 3 {
		t.Fatalf("aggregate calls: want=3 got=%d", agg.calls)
	}
	if agg.lastAction.ActorID != buyer || agg.lastAction.OrderID != orderID {
		t.Fatalf("action input: got %+v", agg.lastAction)
	}
	if res.Order.Status != order.StatusPaymentConfirmed {
		t.Fatalf("status: got %s", res.Order.Status)
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "payment_confirmed" {
		t.Fatalf("events: got %v", got)
	}
}

func TestPayGivesUpAfterMaxRetries(t *testing.T) {
	agg := &fakeSettlement{errs: []error{
		aggErr(domainagg.CodeConflict),
		aggErr(domainagg.CodeConflict),
		aggErr(domainagg.CodeConflict),
		aggErr(domainagg.CodeConflict),
	}}
	notify := newRecordingNotifier()
	svc := newOrderSvc(agg, notify, nil)

	_, err := svc.Pay(asUser(uuid.New()), uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if agg.calls != 3 {
		t.Fatalf("aggregate calls: want=3 (1 + 2 retries) got=%d", agg.calls)
	}
	if len(notify.Events()) != 0 {
		t.Fatalf("failed command must not notify: %v", notify.Events())
	}
}

func TestDomainFailuresAreNotRetried(t *testing.T) {
	for _, code := range []domainagg.ErrorCode{
		domainagg.CodeInvariantViolation,
		domainagg.CodePreconditionFailed,
		domainagg.CodeForbidden,
		domainagg.CodeNotFound,
	} {
		agg := &fakeSettlement{errs: []error{aggErr(code)}}
		svc := newOrderSvc(agg, nil, nil)
		if _, err := svc.Pay(asUser(uuid.New()), uuid.New()); !domainagg.IsCode(err, code) {
			t.Fatalf("%s: got %v", code, err)
		}
		if agg.calls != 1 {
			t.Fatalf("%s: aggregate calls: want=1 got=%d", code, agg.calls)
		}
	}
}

func TestCommandsRequireIdentity(t *testing.T) {
	agg := &fakeSettlement{}
	svc := newOrderSvc(agg, nil, nil)
	if _, err := svc.Pay(context.Background(), uuid.New()); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	if agg.calls != 0 {
		t.Fatalf("aggregate must not be called without identity")
	}
}

func TestCreateParsesAmountAndUsesCallerAsBuyer(t *testing.T) {
	agg := &fakeSettlement{result: domainagg.OrderResult{Order: types.Order{ID: uuid.New()}}}
	notify := newRecordingNotifier()
	svc := newOrderSvc(agg, notify, nil)

	buyer, seller := uuid.New(), uuid.New()
	_, err := svc.Create(asUser(buyer), CreateOrderRequest{
		SellerID: seller,
		Title:    "Camera",
		Amount:   "1250.50",
		Currency: "pkr",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if agg.lastCreate.BuyerID != buyer || agg.lastCreate.SellerID != seller {
		t.Fatalf("parties: got %+v", agg.lastCreate)
	}
	if !agg.lastCreate.Amount.Equals(money.MustParse("1250.50", "PKR")) {
		t.Fatalf("amount: got %s", agg.lastCreate.Amount)
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "created" {
		t.Fatalf("events: got %v", got)
	}

	for _, tc := range []struct{ amount, currency string }{
		{"10", "EUR"},
		{"abc", "PKR"},
		{"10", ""},
	} {
		_, err := svc.Create(asUser(buyer), CreateOrderRequest{SellerID: seller, Title: "x", Amount: tc.amount, Currency: tc.currency})
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("%q %q: want validation, got %v", tc.amount, tc.currency, err)
		}
	}
}

func TestMarkDeliveredSchedulesAutoComplete(t *testing.T) {
	deadline := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	orderID := uuid.New()
	agg := &fakeSettlement{result: domainagg.OrderResult{Order: types.Order{
		ID:                         orderID,
		Status:                     order.StatusDeliveredPendingDecision,
		DeliveryConfirmationExpiry: &deadline,
	}}}
	sched := &fakeScheduler{err: errors.New("temporal unavailable")}
	notify := newRecordingNotifier()
	svc := newOrderSvc(agg, notify, sched)

	if _, err := svc.MarkDelivered(asUser(uuid.New()), orderID); err != nil {
		t.Fatalf("scheduler failure must not fail the command: %v", err)
	}
	if sched.calls != 1 || sched.orderID != orderID || !sched.deadline.Equal(deadline) {
		t.Fatalf("schedule: got %+v", sched)
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "delivered" {
		t.Fatalf("events: got %v", got)
	}
}

func TestRejectNotifiesByOutcome(t *testing.T) {
	early := &fakeSettlement{reject: domainagg.RejectDeliveryResult{Order: types.Order{Status: order.StatusRejected}}}
	notify := newRecordingNotifier()
	if _, err := newOrderSvc(early, notify, nil).Reject(asUser(uuid.New()), uuid.New(), RejectRequest{Reason: "changed my mind"}); err != nil {
		t.Fatalf("Reject early: %v", err)
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "rejected" {
		t.Fatalf("early events: got %v", got)
	}

	late := &fakeSettlement{reject: domainagg.RejectDeliveryResult{
		Order:         types.Order{Status: order.StatusDisputed},
		RequiresAdmin: true,
		Dispute:       &types.Dispute{ID: uuid.New()},
	}}
	notify = newRecordingNotifier()
	res, err := newOrderSvc(late, notify, nil).Reject(asUser(uuid.New()), uuid.New(), RejectRequest{Reason: "damaged"})
	if err != nil {
		t.Fatalf("Reject late: %v", err)
	}
	if !res.RequiresAdmin {
		t.Fatalf("late rejection should require admin")
	}
	if got := notify.Events(); len(got) != 1 || got[0] != "disputed" {
		t.Fatalf("late events: got %v", got)
	}

	if _, err := newOrderSvc(&fakeSettlement{}, nil, nil).Reject(asUser(uuid.New()), uuid.New(), RejectRequest{}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing reason: want validation, got %v", err)
	}
}

func TestListRejectsUnknownFilters(t *testing.T) {
	svc := newOrderSvc(&fakeSettlement{}, nil, nil)
	if _, _, err := svc.List(asUser(uuid.New()), ListOrdersRequest{Role: "courier"}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("role: want validation, got %v", err)
	}
	if _, _, err := svc.List(asUser(uuid.New()), ListOrdersRequest{Statuses: []string{"teleported"}}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("status: want validation, got %v", err)
	}
}
