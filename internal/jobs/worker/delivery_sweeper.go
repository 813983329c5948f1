package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/data/repos"
	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// AutoCompleter completes an order whose decision window has lapsed.
type AutoCompleter interface {
	AutoComplete(ctx context.Context, orderID uuid.UUID, now time.Time) (domainagg.AutoCompleteResult, error)
}

// DeliverySweeper polls for orders past their decision deadline. It backs up
// the Temporal timer and is the only driver when Temporal is disabled.
type DeliverySweeper struct {
	log       *logger.Logger
	orders    repos.OrderRepo
	completer AutoCompleter
	batch     int
	clock     func() time.Time
}

func NewDeliverySweeper(baseLog *logger.Logger, orders repos.OrderRepo, completer AutoCompleter, batch int) *DeliverySweeper {
	if batch <= 0 {
		batch = 100
	}
	return &DeliverySweeper{
		log:       baseLog.With("component", "DeliverySweeper"),
		orders:    orders,
		completer: completer,
		batch:     batch,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// SweepOnce returns how many orders it completed. One failing order does
// not stop the sweep.
func (s *DeliverySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock()
	ids, err := s.orders.ListExpiredPendingDecision(dbctx.Context{Ctx: ctx}, now, s.batch)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		res, err := s.completer.AutoComplete(ctx, id, now)
		if err != nil {
			s.log.Warn("auto-complete failed", "order_id", id, "error", err)
			continue
		}
		if res.Completed {
			completed++
		}
	}
	if completed > 0 {
		s.log.Info("delivery sweep completed orders", "count", completed)
	}
	return completed, nil
}

func (s *DeliverySweeper) Task(interval time.Duration) Task {
	if interval <= 0 {
		interval = time.Minute
	}
	return Task{
		Name:     "delivery_sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := s.SweepOnce(ctx)
			return err
		},
	}
}
