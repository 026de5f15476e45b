// Package temporal schedules sponsorship expiry on a Temporal cluster.
package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/huarazguide/internal/workflows"
)

// Scheduler implements ports.SponsorshipScheduler.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// NewScheduler wraps a connected Temporal client.
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	if taskQueue == "" {
		taskQueue = workflows.TaskQueue
	}
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// ScheduleExpiry starts the business's expiry workflow, or re-times the
// running one through a signal.
func (s *Scheduler) ScheduleExpiry(ctx context.Context, businessID string, end time.Time) error {
	_, err := s.client.SignalWithStartWorkflow(ctx,
		workflows.WorkflowID(businessID),
		workflows.RescheduleSignal,
		end,
		client.StartWorkflowOptions{TaskQueue: s.taskQueue},
		workflows.SponsorshipExpiryWorkflow,
		workflows.SponsorshipExpiryInput{BusinessID: businessID, EndDate: end},
	)
	if err != nil {
		return fmt.Errorf("signal-with-start %s: %w", workflows.WorkflowID(businessID), err)
	}
	return nil
}
