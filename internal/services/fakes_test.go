package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/escrow-backend/internal/domain"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/platform/ctxutil"
	"github.com/yungbote/escrow-backend/internal/platform/policy"
)

func testConfig() CommandConfig {
	return CommandConfig{MaxRetries: 2, RetryBackoff: time.Microsecond, Policy: policy.Default()}
}

func asUser(id uuid.UUID) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: id, Role: ctxutil.RoleUser})
}

func asAdmin(id uuid.UUID) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: id, Role: ctxutil.RoleAdmin})
}

func aggErr(code domainagg.ErrorCode) error {
	return domainagg.NewError(code, "fake", string(code), nil)
}

// fakeSettlement returns queued errors before succeeding with result.
type fakeSettlement struct {
	domainagg.SettlementAggregate

	errs   []error
	result domainagg.OrderResult
	reject domainagg.RejectDeliveryResult

	calls      int
	lastCreate domainagg.CreateOrderInput
	lastAction domainagg.OrderActionInput
	lastReject domainagg.RejectDeliveryInput
}

func (f *fakeSettlement) next() error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeSettlement) CreateOrder(_ context.Context, in domainagg.CreateOrderInput) (domainagg.OrderResult, error) {
	f.lastCreate = in
	if err := f.next(); err != nil {
		return domainagg.OrderResult{}, err
	}
	return f.result, nil
}

func (f *fakeSettlement) PayOrder(_ context.Context, in domainagg.OrderActionInput) (domainagg.OrderResult, error) {
	f.lastAction = in
	if err := f.next(); err != nil {
		return domainagg.OrderResult{}, err
	}
	return f.result, nil
}

func (f *fakeSettlement) MarkDelivered(_ context.Context, in domainagg.OrderActionInput) (domainagg.OrderResult, error) {
	f.lastAction = in
	if err := f.next(); err != nil {
		return domainagg.OrderResult{}, err
	}
	return f.result, nil
}

func (f *fakeSettlement) RejectDelivery(_ context.Context, in domainagg.RejectDeliveryInput) (domainagg.RejectDeliveryResult, error) {
	f.lastReject = in
	if err := f.next(); err != nil {
		return domainagg.RejectDeliveryResult{}, err
	}
	return f.reject, nil
}

type fakeDisputes struct {
	domainagg.DisputeAggregate

	resolveCalls int
	lastResolve  domainagg.ResolveDisputeInput
	lastAdmin    domainagg.DisputeAdminInput
}

func (f *fakeDisputes) Resolve(_ context.Context, in domainagg.ResolveDisputeInput) (domainagg.ResolveDisputeResult, error) {
	f.resolveCalls++
	f.lastResolve = in
	return domainagg.ResolveDisputeResult{}, nil
}

func (f *fakeDisputes) Escalate(_ context.Context, in domainagg.DisputeAdminInput) (domainagg.DisputeResult, error) {
	f.lastAdmin = in
	return domainagg.DisputeResult{}, nil
}

type fakeWithdrawals struct {
	domainagg.WithdrawalAggregate

	requestCalls int
	lastRequest  domainagg.RequestWithdrawalInput
	failResult   domainagg.WithdrawalResult
}

func (f *fakeWithdrawals) Request(_ context.Context, in domainagg.RequestWithdrawalInput) (domainagg.WithdrawalResult, error) {
	f.requestCalls++
	f.lastRequest = in
	return domainagg.WithdrawalResult{}, nil
}

func (f *fakeWithdrawals) Fail(_ context.Context, in domainagg.FailWithdrawalInput) (domainagg.WithdrawalResult, error) {
	return f.failResult, nil
}

// recordingNotifier keeps the event names it was asked to publish.
type recordingNotifier struct {
	Notifier
	mu     sync.Mutex
	events []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{Notifier: NopNotifier()}
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) NotifyOrderCreated(context.Context, types.Order) { n.add("created") }
func (n *recordingNotifier) NotifyPaymentConfirmed(context.Context, types.Order) {
	n.add("payment_confirmed")
}
func (n *recordingNotifier) NotifyDelivered(context.Context, types.Order) { n.add("delivered") }
func (n *recordingNotifier) NotifyRejected(context.Context, types.Order)  { n.add("rejected") }
func (n *recordingNotifier) NotifyDisputed(context.Context, types.Order, types.Dispute) {
	n.add("disputed")
}
func (n *recordingNotifier) NotifyDisputeResolved(context.Context, types.Order, types.Dispute, money.Money, money.Money) {
	n.add("dispute_resolved")
}
func (n *recordingNotifier) NotifyWithdrawalRequested(context.Context, types.Withdrawal) {
	n.add("withdrawal_requested")
}
func (n *recordingNotifier) NotifyWithdrawalFailed(context.Context, types.Withdrawal) {
	n.add("withdrawal_failed")
}

type fakeScheduler struct {
	err      error
	orderID  uuid.UUID
	deadline time.Time
	calls    int
}

func (f *fakeScheduler) ScheduleAutoComplete(_ context.Context, orderID uuid.UUID, deadline time.Time) error {
	f.calls++
	f.orderID = orderID
	f.deadline = deadline
	return f.err
}
