package worker

import (
	"context"

	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// Publisher hands one outbox envelope to a transport. Delivery is
// at-least-once; consumers dedup by envelope id.
type Publisher interface {
	Publish(ctx context.Context, env outbox.Envelope) error
}

type logPublisher struct {
	log *logger.Logger
}

// NewLogPublisher writes envelopes to the log. Used when no broker is configured.
func NewLogPublisher(baseLog *logger.Logger) Publisher {
	return &logPublisher{log: baseLog.With("component", "LogPublisher")}
}

func (p *logPublisher) Publish(_ context.Context, env outbox.Envelope) error {
	p.log.Info("outbox event",
		"id", env.ID,
		"event_type", env.EventType,
		"aggregate_type", env.AggregateType,
		"aggregate_id", env.AggregateID,
	)
	return nil
}
