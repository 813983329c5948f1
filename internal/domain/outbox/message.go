package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusDead      = "dead"
)

// Event types published for order, dispute and withdrawal lifecycle steps.
const (
	EventOrderCreated          = "order.created"
	EventOrderPaymentPending   = "order.payment_pending"
	EventOrderPaymentConfirmed = "order.payment_confirmed"
	EventOrderParcelBooked     = "order.parcel_booked"
	EventOrderShipped          = "order.shipped"
	EventOrderDelivered        = "order.delivered"
	EventOrderCompleted        = "order.completed"
	EventOrderCancelled        = "order.cancelled"
	EventOrderRejected         = "order.rejected"
	EventOrderDisputed         = "order.disputed"
	EventDisputeResolved       = "dispute.resolved"
	EventWithdrawalRequested   = "withdrawal.requested"
	EventWithdrawalSettled     = "withdrawal.settled"
	EventWithdrawalFailed      = "withdrawal.failed"
)

// Message is a notification waiting to be published.
type Message struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventType     string         `gorm:"column:event_type;not null;index" json:"event_type"`
	AggregateType string         `gorm:"column:aggregate_type;not null" json:"aggregate_type"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;column:aggregate_id;not null;index" json:"aggregate_id"`
	Payload       datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Status        string         `gorm:"column:status;not null;index:idx_outbox_status_created,priority:1" json:"status"`
	Attempts      int            `gorm:"column:attempts;not null" json:"attempts"`
	LastError     string         `gorm:"column:last_error" json:"last_error,omitempty"`
	ProcessedAt   *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_outbox_status_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "outbox_message" }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// NewMessage encodes payload as JSON and returns a pending message.
func NewMessage(eventType, aggregateType string, aggregateID uuid.UUID, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       datatypes.JSON(b),
		Status:        StatusPending,
	}, nil
}

// Envelope is the wire shape handed to publishers.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (m *Message) Envelope() Envelope {
	return Envelope{
		ID:            m.ID,
		EventType:     m.EventType,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		Payload:       json.RawMessage(m.Payload),
		OccurredAt:    m.CreatedAt,
	}
}
