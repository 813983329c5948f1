package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type Config struct {
	URL   string
	Queue string
	// Dial attempts before giving up; the broker may still be starting.
	DialAttempts int
	DialBackoff  time.Duration
}

// Publisher writes outbox envelopes to a durable queue as persistent
// messages. The envelope id doubles as the AMQP message id so consumers can
// dedupe redeliveries.
type Publisher struct {
	log   *logger.Logger
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(log *logger.Logger, cfg Config) (*Publisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("missing AMQP_URL")
	}
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = "escrow.events"
	}
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 10
	}
	backoff := cfg.DialBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	log = log.With("service", "RabbitMQPublisher")

	var conn *amqp.Connection
	var err error
	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("RabbitMQ not reachable; retrying", "attempt", i, "max_attempts", attempts, "error", err)
		if i < attempts {
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return &Publisher{log: log, conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Publish(ctx context.Context, env outbox.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := publishing(env, body)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", env.ID, err)
	}
	return nil
}

func publishing(env outbox.Envelope, body []byte) amqp.Publishing {
	return amqp.Publishing{
		MessageId:    env.ID.String(),
		Type:         env.EventType,
		ContentType:  "application/json",
		Timestamp:    env.OccurredAt,
		DeliveryMode: amqp.Persistent,
		Headers: amqp.Table{
			"aggregate_type": env.AggregateType,
			"aggregate_id":   env.AggregateID.String(),
		},
		Body: body,
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
