package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// IdempotencyRecord is the stored outcome of a request. Done is false while
// the first request is still being handled.
type IdempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Done        bool   `json:"done"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type IdempotencyStore interface {
	// Begin claims key. When another request already holds it, the existing
	// record is returned with claimed=false.
	Begin(ctx context.Context, key, fingerprint string) (existing *IdempotencyRecord, claimed bool, err error)
	Complete(ctx context.Context, key string, rec IdempotencyRecord) error
	// Release drops an unfinished claim so the client can retry.
	Release(ctx context.Context, key string) error
}

type idempotencyStore struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewIdempotencyStore(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) (IdempotencyStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyStore{
		log:    log.With("service", "RedisIdempotencyStore"),
		rdb:    rdb,
		ttl:    ttl,
		prefix: "escrow:idem:",
	}, nil
}

func (s *idempotencyStore) Begin(ctx context.Context, key, fingerprint string) (*IdempotencyRecord, bool, error) {
	raw, err := json.Marshal(IdempotencyRecord{Fingerprint: fingerprint})
	if err != nil {
		return nil, false, err
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, raw, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	got, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; claim again.
		return s.Begin(ctx, key, fingerprint)
	}
	if err != nil {
		return nil, false, err
	}
	var rec IdempotencyRecord
	if err := json.Unmarshal(got, &rec); err != nil {
		s.log.Warn("bad idempotency record", "error", err)
		return nil, false, err
	}
	return &rec, false, nil
}

func (s *idempotencyStore) Complete(ctx context.Context, key string, rec IdempotencyRecord) error {
	rec.Done = true
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

func (s *idempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
