package deliverywindow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

// Scheduler starts one delivery window workflow per delivered order.
type Scheduler struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewScheduler(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string) (*Scheduler, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if taskQueue == "" {
		return nil, fmt.Errorf("task queue required")
	}
	return &Scheduler{log: log.With("service", "DeliveryWindowScheduler"), tc: tc, taskQueue: taskQueue}, nil
}

func (s *Scheduler) ScheduleAutoComplete(ctx context.Context, orderID uuid.UUID, deadline time.Time) error {
	id := orderID.String()
	run, err := s.tc.ExecuteWorkflow(ctx, startOptions(id, s.taskQueue), WorkflowName, Input{OrderID: id, Deadline: deadline.UTC()})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start delivery window for %s: %w", id, err)
	}
	s.log.Info("delivery window scheduled", "order_id", id, "deadline", deadline, "run_id", run.GetRunID())
	return nil
}

func startOptions(orderID, taskQueue string) temporalsdkclient.StartWorkflowOptions {
	return temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(orderID),
		TaskQueue: taskQueue,
	}
}
