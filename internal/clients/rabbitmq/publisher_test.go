package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/escrow-backend/internal/domain/outbox"
)

func TestPublishingCarriesEnvelopeIdentity(t *testing.T) {
	env := outbox.Envelope{
		ID:            uuid.New(),
		EventType:     outbox.EventOrderCompleted,
		AggregateType: "order",
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"order_id":"x"}`),
		OccurredAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(env)
	msg := publishing(env, body)

	if msg.MessageId != env.ID.String() || msg.Type != outbox.EventOrderCompleted {
		t.Fatalf("identity: got id=%s type=%s", msg.MessageId, msg.Type)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode: got %d", msg.DeliveryMode)
	}
	if msg.Headers["aggregate_id"] != env.AggregateID.String() {
		t.Fatalf("headers: got %v", msg.Headers)
	}
	if !msg.Timestamp.Equal(env.OccurredAt) {
		t.Fatalf("timestamp: got %v", msg.Timestamp)
	}
}
