package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the Temporal task queue served by the sponsorship worker.
const TaskQueue = "sponsorship-queue"

// RescheduleSignal carries a new end date (time.Time) to a running expiry workflow.
const RescheduleSignal = "reschedule"

// SponsorshipExpiryInput is the input for SponsorshipExpiryWorkflow.
type SponsorshipExpiryInput struct {
	BusinessID string
	EndDate    time.Time
}

// WorkflowID is the per-business workflow id, so a renewal reaches the
// running timer instead of starting a second one.
func WorkflowID(businessID string) string {
	return "sponsorship-expiry-" + businessID
}

// SponsorshipExpiryWorkflow sleeps until the sponsorship's end date and then
// downgrades the business. A reschedule signal restarts the timer.
func SponsorshipExpiryWorkflow(ctx workflow.Context, input SponsorshipExpiryInput) (bool, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting sponsorship expiry workflow", "businessID", input.BusinessID, "endDate", input.EndDate)

	end := input.EndDate
	signals := workflow.GetSignalChannel(ctx, RescheduleSignal)

	for {
		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		wait := end.Sub(workflow.Now(ctx))
		if wait < 0 {
			wait = 0
		}
		timer := workflow.NewTimer(timerCtx, wait)

		fired := false
		sel := workflow.NewSelector(ctx)
		sel.AddFuture(timer, func(f workflow.Future) {
			fired = f.Get(ctx, nil) == nil
		})
		sel.AddReceive(signals, func(c workflow.ReceiveChannel, more bool) {
			var next time.Time
			c.Receive(ctx, &next)
			logger.Info("Sponsorship rescheduled", "businessID", input.BusinessID, "endDate", next)
			end = next
			cancelTimer()
		})
		sel.Select(ctx)
		if fired {
			break
		}
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var expired bool
	if err := workflow.ExecuteActivity(ctx, "ExpireSponsorship", input.BusinessID, end).Get(ctx, &expired); err != nil {
		logger.Error("Failed to expire sponsorship", "error", err)
		return false, err
	}
	logger.Info("Sponsorship expiry workflow completed", "businessID", input.BusinessID, "expired", expired)
	return expired, nil
}
