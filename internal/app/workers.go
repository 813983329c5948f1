package app

import (
	"github.com/yungbote/escrow-backend/internal/data/aggregates"
	"github.com/yungbote/escrow-backend/internal/data/repos"
	"github.com/yungbote/escrow-backend/internal/jobs/worker"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

func wireWorker(
	log *logger.Logger,
	cfg Config,
	metrics *observability.Metrics,
	runner aggregates.TxRunner,
	r repos.Set,
	pub worker.Publisher,
	completer worker.AutoCompleter,
) *worker.Worker {
	log.Info("Wiring background jobs...")
	w := worker.NewWorker(log, metrics)

	dispatcher := worker.NewOutboxDispatcher(log, runner, r.OutboxEvents, pub, metrics, worker.OutboxDispatcherConfig{
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Parallelism: cfg.OutboxParallelism,
	})
	w.Register(dispatcher.Task(cfg.OutboxInterval))

	sweeper := worker.NewDeliverySweeper(log, r.Orders, completer, cfg.DeliverySweepBatch)
	w.Register(sweeper.Task(cfg.DeliverySweepInterval))
	return w
}
