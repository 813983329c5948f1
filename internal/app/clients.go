package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/escrow-backend/internal/clients/rabbitmq"
	redisclient "github.com/yungbote/escrow-backend/internal/clients/redis"
	"github.com/yungbote/escrow-backend/internal/jobs/worker"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/temporalx"
)

// Clients holds external connections. Every field is optional.
type Clients struct {
	Redis       *goredis.Client
	Idempotency redisclient.IdempotencyStore
	Rabbit      *rabbitmq.Publisher
	Temporal    temporalsdkclient.Client
	TemporalCfg temporalx.Config
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	rdb, err := redisclient.NewClient(log, cfg.RedisAddr)
	if err != nil {
		return out, err
	}
	if rdb != nil {
		out.Redis = rdb
		store, err := redisclient.NewIdempotencyStore(log, rdb, cfg.IdempotencyTTL)
		if err != nil {
			out.Close()
			return out, err
		}
		out.Idempotency = store
	}

	if cfg.OutboxPublisher == "rabbitmq" {
		pub, err := rabbitmq.NewPublisher(log, rabbitmq.Config{URL: cfg.AMQPURL, Queue: cfg.AMQPQueue})
		if err != nil {
			out.Close()
			return out, err
		}
		out.Rabbit = pub
	}

	out.TemporalCfg = temporalx.LoadConfig()
	tc, err := temporalx.NewClient(log, out.TemporalCfg)
	if err != nil {
		out.Close()
		return out, err
	}
	out.Temporal = tc
	return out, nil
}

// outboxPublisher picks the sink named by OUTBOX_PUBLISHER.
func outboxPublisher(log *logger.Logger, cfg Config, c Clients) (worker.Publisher, error) {
	switch cfg.OutboxPublisher {
	case "", "log":
		return worker.NewLogPublisher(log), nil
	case "redis":
		if c.Redis == nil {
			return nil, fmt.Errorf("OUTBOX_PUBLISHER=redis requires REDIS_ADDR")
		}
		return redisclient.NewOutboxBus(log, c.Redis, cfg.RedisChannel)
	case "rabbitmq":
		if c.Rabbit == nil {
			return nil, fmt.Errorf("rabbitmq publisher not initialized")
		}
		return c.Rabbit, nil
	default:
		return nil, fmt.Errorf("unknown OUTBOX_PUBLISHER %q", cfg.OutboxPublisher)
	}
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Rabbit != nil {
		_ = c.Rabbit.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
