package commands

import (
	"context"
	"log/slog"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

type ResetResult struct {
	Created    int
	WasRunning bool
}

// ResetUseCase wipes all disbursements and identities and regenerates the pool.
// A running runtime is stopped for the duration and started again afterwards.
type ResetUseCase struct {
	Purger     ports.Purger
	Pool       PoolReplenishUseCase
	Runtime    ports.RuntimeControl
	Chain      string
	PoolTarget int
	Logger     *slog.Logger
}

func (uc ResetUseCase) Run(ctx context.Context) (ResetResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	wasRunning := uc.Runtime != nil && uc.Runtime.Running()
	if wasRunning {
		uc.Runtime.Stop()
	}

	if err := uc.Purger.PurgeAll(ctx); err != nil {
		logger.Error("reset purge failed",
			"event", "disbursement_reset_purge_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		uc.restart(wasRunning)
		return ResetResult{WasRunning: wasRunning}, err
	}

	created, err := uc.Pool.Generate(ctx, uc.Chain, uc.PoolTarget)
	if err != nil {
		uc.restart(wasRunning)
		return ResetResult{WasRunning: wasRunning}, err
	}
	uc.restart(wasRunning)

	logger.Warn("disbursement state reset",
		"event", "disbursement_reset_completed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"created", len(created),
		"was_running", wasRunning,
	)
	return ResetResult{Created: len(created), WasRunning: wasRunning}, nil
}

func (uc ResetUseCase) restart(wasRunning bool) {
	if wasRunning {
		uc.Runtime.Start()
	}
}
