package outbox

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewMessageEncodesPayload(t *testing.T) {
	id := uuid.New()
	m, err := NewMessage(EventOrderShipped, "order", id, map[string]any{"tracking_number": "T-9"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if m.Status != StatusPending || m.AggregateID != id || m.Attempts != 0 {
		t.Fatalf("unexpected message: %+v", m)
	}
	env := m.Envelope()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var back struct {
		EventType string            `json:"event_type"`
		Payload   map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if back.EventType != EventOrderShipped || back.Payload["tracking_number"] != "T-9" {
		t.Fatalf("envelope: %s", string(b))
	}
}

func TestNewMessageRejectsUnencodablePayload(t *testing.T) {
	if _, err := NewMessage(EventOrderCreated, "order", uuid.New(), make(chan int)); err == nil {
		t.Fatalf("expected encode error")
	}
}
