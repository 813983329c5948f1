package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("agg.op", "success", 10*time.Millisecond)
	h.IncConflict("agg.op")
	h.IncRetry("agg.op")

	if len(h.Operations) != 1 {
		t.Fatalf("expected 1 op event, got %d", len(h.Operations))
	}
	if h.Operations[0].Name != "agg.op" || h.Operations[0].Status != "success" {
		t.Fatalf("unexpected op event: %+v", h.Operations[0])
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "agg.op" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "agg.op" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}

func TestHooksRecorder_FiltersByName(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("Payments.Settlement.PayOrder", "conflict", time.Millisecond)
	h.ObserveOperation("Payments.Wallet.TopUp", "success", time.Millisecond)
	h.ObserveOperation("Payments.Settlement.PayOrder", "success", time.Millisecond)

	if got := h.OperationCount("Payments.Settlement.PayOrder"); got != 2 {
		t.Fatalf("PayOrder count: want=2 got=%d", got)
	}
	st := h.Statuses("Payments.Settlement.PayOrder")
	if len(st) != 2 || st[0] != "conflict" || st[1] != "success" {
		t.Fatalf("unexpected statuses: %v", st)
	}
	if got := h.OperationCount("missing"); got != 0 {
		t.Fatalf("missing count: want=0 got=%d", got)
	}
}
