package deliverywindow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type AutoCompleter interface {
	AutoComplete(ctx context.Context, orderID uuid.UUID, now time.Time) (domainagg.AutoCompleteResult, error)
}

type Activities struct {
	Log    *logger.Logger
	Orders AutoCompleter
	Clock  func() time.Time
}

func (a *Activities) AutoComplete(ctx context.Context, in Input) (Result, error) {
	res := Result{OrderID: in.OrderID}
	id, err := uuid.Parse(in.OrderID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("invalid order_id", "validation", err)
	}

	now := time.Now().UTC()
	if a.Clock != nil {
		now = a.Clock()
	}
	out, err := a.Orders.AutoComplete(ctx, id, now)
	if err != nil {
		if !domainagg.Decided(err) {
			return res, err
		}
		// Nothing a retry can change; the sweeper still sees the order.
		if a.Log != nil {
			a.Log.Warn("auto-complete rejected", "order_id", id, "error", err)
		}
		return res, temporal.NewNonRetryableApplicationError(err.Error(), string(domainagg.CodeOf(err)), err)
	}
	res.Completed = out.Completed
	res.Status = string(out.Order.Status)
	return res, nil
}
