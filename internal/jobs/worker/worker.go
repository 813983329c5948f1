package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// Task is a unit of background work polled on a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	// Number of loops running the task in parallel; defaults to 1.
	Concurrency int
	Run         func(ctx context.Context) error
}

type Worker struct {
	log     *logger.Logger
	metrics *observability.Metrics
	tasks   []Task
}

func NewWorker(baseLog *logger.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		log:     baseLog.With("component", "JobWorker"),
		metrics: metrics,
	}
}

func (w *Worker) Register(t Task) {
	if t.Run == nil || t.Name == "" {
		return
	}
	if t.Interval <= 0 {
		t.Interval = time.Second
	}
	if t.Concurrency < 1 {
		t.Concurrency = 1
	}
	w.tasks = append(w.tasks, t)
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.tasks) == 0 {
		<-ctx.Done()
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range w.tasks {
		w.log.Info("Starting job loop", "task", t.Name, "interval", t.Interval.String(), "concurrency", t.Concurrency)
		for i := 0; i < t.Concurrency; i++ {
			t, loopID := t, i+1
			g.Go(func() error {
				w.runLoop(ctx, t, loopID)
				return nil
			})
		}
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, t Task, loopID int) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "task", t.Name, "loop_id", loopID)
			return
		case <-ticker.C:
			if err := w.runOnce(ctx, t); err != nil && ctx.Err() == nil {
				w.log.Warn("Job run failed", "task", t.Name, "loop_id", loopID, "error", err)
			}
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "task", t.Name, "panic", r)
			err = &panicError{Val: r}
		}
		status := "succeeded"
		if err != nil {
			status = "failed"
		}
		w.metrics.ObserveJob(t.Name, status, time.Since(start))
	}()
	return t.Run(ctx)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
