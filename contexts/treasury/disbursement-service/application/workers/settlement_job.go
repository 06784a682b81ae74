package workers

import (
	"context"
	"log/slog"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
)

// SettlementJob runs one settlement tick: submission then confirmation.
type SettlementJob struct {
	Settlement commands.SettlementUseCase
	Logger     *slog.Logger
}

func (j SettlementJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Settlement.Tick(ctx)
	if err != nil {
		logger.Error("disbursement settlement tick failed",
			"event", "disbursement_settlement_tick_failed",
			"module", "treasury/disbursement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("disbursement settlement tick succeeded",
		"event", "disbursement_settlement_tick_succeeded",
		"module", "treasury/disbursement-service",
		"layer", "worker",
		"submitted", result.Submission.Submitted,
		"confirmed", result.Confirmation.Confirmed,
		"failed", result.Submission.Failed+result.Confirmation.Failed,
	)
	return nil
}
