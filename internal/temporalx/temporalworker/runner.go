package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/escrow-backend/internal/platform/envutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/temporalx"
	"github.com/yungbote/escrow-backend/internal/temporalx/deliverywindow"
)

type Runner struct {
	log    *logger.Logger
	cfg    temporalx.Config
	tc     temporalsdkclient.Client
	orders deliverywindow.AutoCompleter
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, orders deliverywindow.AutoCompleter) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if orders == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:    log.With("service", "TemporalWorker"),
		cfg:    cfg,
		tc:     tc,
		orders: orders,
	}, nil
}

// Run starts the worker, retrying while the namespace or frontend is not
// ready, and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	autoRegister := envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false)
	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60*time.Second)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			<-ctx.Done()
			w.Stop()
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && autoRegister {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}

		if time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff(attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &deliverywindow.Activities{Log: r.log, Orders: r.orders}
	w.RegisterWorkflowWithOptions(deliverywindow.Workflow, workflow.RegisterOptions{Name: deliverywindow.WorkflowName})
	w.RegisterActivityWithOptions(acts.AutoComplete, activity.RegisterOptions{Name: deliverywindow.ActivityAutoComplete})
	return w
}

func backoff(attempt int) time.Duration {
	d := 250 * time.Millisecond
	for i := 1; i < attempt && d < 5*time.Second; i++ {
		d *= 2
	}
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
