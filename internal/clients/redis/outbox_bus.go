package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// OutboxBus fans outbox envelopes out over Redis pub/sub.
type OutboxBus interface {
	Publish(ctx context.Context, env outbox.Envelope) error
}

type outboxBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewOutboxBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) (OutboxBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "escrow.events"
	}
	return &outboxBus{
		log:     log.With("service", "RedisOutboxBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *outboxBus) Publish(ctx context.Context, env outbox.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}
