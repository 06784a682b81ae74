package workers

import (
	"context"
	"log/slog"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
)

// PoolJob tops the idle identity pool up to Target for Chain.
type PoolJob struct {
	Pool   commands.PoolReplenishUseCase
	Chain  string
	Target int
	Logger *slog.Logger
}

func (j PoolJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Pool.Run(ctx, j.Chain, j.Target)
	if err != nil {
		logger.Error("disbursement pool cycle failed",
			"event", "disbursement_pool_cycle_failed",
			"module", "treasury/disbursement-service",
			"layer", "worker",
			"chain", j.Chain,
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("disbursement pool cycle succeeded",
		"event", "disbursement_pool_cycle_succeeded",
		"module", "treasury/disbursement-service",
		"layer", "worker",
		"chain", j.Chain,
		"created", result.Created,
		"idle", result.Idle,
	)
	return nil
}
