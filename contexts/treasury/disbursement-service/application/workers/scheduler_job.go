package workers

import (
	"context"
	"log/slog"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
)

// SchedulerJob runs one scheduling cycle against the settings in force.
type SchedulerJob struct {
	Scheduler commands.ScheduleCycleUseCase
	Logger    *slog.Logger
}

func (j SchedulerJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Scheduler.RunWithSettings(ctx)
	if err != nil {
		logger.Error("disbursement scheduler cycle failed",
			"event", "disbursement_scheduler_cycle_failed",
			"module", "treasury/disbursement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("disbursement scheduler cycle succeeded",
		"event", "disbursement_scheduler_cycle_succeeded",
		"module", "treasury/disbursement-service",
		"layer", "worker",
		"scheduled_count", result.ScheduledCount,
		"reason", result.Reason,
	)
	return nil
}
