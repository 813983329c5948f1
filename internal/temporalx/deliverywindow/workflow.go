package deliverywindow

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow sleeps until the buyer's decision deadline and then asks the
// settlement layer to auto-complete the order. An order the buyer already
// confirmed or rejected comes back with Completed=false.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return Result{}, fmt.Errorf("deliverywindow: missing order_id")
	}

	if d := in.Deadline.Sub(workflow.Now(ctx)); d > 0 {
		if err := workflow.Sleep(ctx, d); err != nil {
			return Result{}, err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    20,
		},
	})

	var out Result
	if err := workflow.ExecuteActivity(ctx, ActivityAutoComplete, in).Get(ctx, &out); err != nil {
		return Result{}, err
	}
	workflow.GetLogger(ctx).Info("delivery window closed", "order_id", orderID, "completed", out.Completed)
	return out, nil
}
