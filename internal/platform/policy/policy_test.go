package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	if p.DefaultCurrency() != "PKR" {
		t.Fatalf("default currency: want=PKR got=%s", p.DefaultCurrency())
	}
	if p.DecisionWindow() != 48*time.Hour {
		t.Fatalf("decision window: want=48h got=%s", p.DecisionWindow())
	}
	if !p.SupportsChannel("JazzCash") || p.SupportsChannel("paypal") {
		t.Fatalf("unexpected channel support: %+v", p.Withdrawal.Channels)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("delivery:\n  decision_window_hours: 24\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.DecisionWindow() != 24*time.Hour {
		t.Fatalf("decision window: want=24h got=%s", p.DecisionWindow())
	}
	if p.Delivery.ConfirmationCodeLength != 6 {
		t.Fatalf("code length should keep default, got %d", p.Delivery.ConfirmationCodeLength)
	}
}

func TestParseRejectsBadCurrency(t *testing.T) {
	_, err := Parse([]byte("currency:\n  default: RUPEE\ndelivery:\n  decision_window_hours: 1\n  confirmation_code_length: 6\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}
