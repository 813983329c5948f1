package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/escrow-backend/internal/data/aggregates"
	"github.com/yungbote/escrow-backend/internal/data/repos"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

const (
	defaultOutboxBatch       = 25
	defaultOutboxMaxAttempts = 10
	defaultOutboxParallelism = 4
)

type OutboxDispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	// Concurrent publishes within one batch.
	Parallelism int
}

// OutboxDispatcher drains pending outbox rows to a Publisher.
type OutboxDispatcher struct {
	log     *logger.Logger
	runner  aggregates.TxRunner
	repo    repos.OutboxMessageRepo
	pub     Publisher
	metrics *observability.Metrics
	cfg     OutboxDispatcherConfig
	clock   func() time.Time
}

func NewOutboxDispatcher(
	baseLog *logger.Logger,
	runner aggregates.TxRunner,
	repo repos.OutboxMessageRepo,
	pub Publisher,
	metrics *observability.Metrics,
	cfg OutboxDispatcherConfig,
) *OutboxDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultOutboxBatch
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultOutboxMaxAttempts
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultOutboxParallelism
	}
	return &OutboxDispatcher{
		log:     baseLog.With("component", "OutboxDispatcher"),
		runner:  runner,
		repo:    repo,
		pub:     pub,
		metrics: metrics,
		cfg:     cfg,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// DispatchOnce claims one batch, publishes it and records the outcome per row.
// Claimed rows stay locked until the transaction ends, so concurrent
// dispatchers never publish the same row twice in one round.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	published := 0
	err := d.runner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := d.repo.ClaimPending(dbc, d.cfg.BatchSize)
		if err != nil || len(rows) == 0 {
			return err
		}

		results := make([]error, len(rows))
		var g errgroup.Group
		g.SetLimit(d.cfg.Parallelism)
		for i, row := range rows {
			g.Go(func() error {
				results[i] = d.pub.Publish(dbc.Ctx, row.Envelope())
				return nil
			})
		}
		_ = g.Wait()

		done := make([]uuid.UUID, 0, len(rows))
		for i, row := range rows {
			d.metrics.ObserveOutboxPublish(row.EventType, results[i])
			if results[i] == nil {
				done = append(done, row.ID)
				continue
			}
			if row.Attempts+1 >= d.cfg.MaxAttempts {
				d.log.Error("outbox message dead-lettered", "id", row.ID, "event_type", row.EventType, "attempts", row.Attempts+1, "error", results[i])
			} else {
				d.log.Warn("outbox publish failed", "id", row.ID, "event_type", row.EventType, "attempt", row.Attempts+1, "error", results[i])
			}
			if err := d.repo.MarkFailed(dbc, row.ID, results[i].Error(), d.cfg.MaxAttempts); err != nil {
				return err
			}
		}
		if err := d.repo.MarkProcessed(dbc, done, d.clock()); err != nil {
			return err
		}
		published = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

// Task adapts the dispatcher to the worker pool.
func (d *OutboxDispatcher) Task(interval time.Duration) Task {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return Task{
		Name:     "outbox_dispatch",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := d.DispatchOnce(ctx)
			return err
		},
	}
}
