package commands

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

const ReasonMissingSettings = "missing-settings"

type ScheduleCycleCommand struct {
	Chain          string
	TokenRef       string
	AmountCeiling  string
	DailyTarget    int
	LifetimeTarget int
}

type ScheduleCycleResult struct {
	ScheduledCount int
	Reason         string
}

// ScheduleCycleUseCase reserves idle identities and creates PENDING disbursements
// with randomized amounts and send times inside the next 24h.
type ScheduleCycleUseCase struct {
	Identities    ports.IdentityStore
	Disbursements ports.DisbursementStore
	Settings      ports.SettingsProvider
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	Random        ports.Random
	Logger        *slog.Logger
}

// RunWithSettings runs one cycle against the settings currently in force.
func (uc ScheduleCycleUseCase) RunWithSettings(ctx context.Context) (ScheduleCycleResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	settings, err := uc.Settings.Current(ctx)
	if err != nil {
		logger.Error("schedule cycle settings load failed",
			"event", "disbursement_schedule_settings_load_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return ScheduleCycleResult{}, err
	}
	return uc.Run(ctx, ScheduleCycleCommand{
		Chain:          settings.Chain,
		TokenRef:       settings.TokenRef,
		AmountCeiling:  settings.AmountCeiling,
		DailyTarget:    settings.DailyTarget,
		LifetimeTarget: settings.LifetimeTarget,
	})
}

func (uc ScheduleCycleUseCase) Run(ctx context.Context, cmd ScheduleCycleCommand) (ScheduleCycleResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	tokenRef := strings.TrimSpace(cmd.TokenRef)
	upper, err := services.AmountUpperBound(strings.TrimSpace(cmd.AmountCeiling))
	if tokenRef == "" || err != nil {
		logger.Warn("schedule cycle skipped on missing settings",
			"event", "disbursement_schedule_missing_settings",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"has_token_ref", tokenRef != "",
			"amount_ceiling", strings.TrimSpace(cmd.AmountCeiling),
		)
		return ScheduleCycleResult{Reason: ReasonMissingSettings}, nil
	}

	now := uc.now()
	windowEnd := now.Add(services.ScheduleWindow)

	scheduledToday, err := uc.Disbursements.CountScheduledBetween(ctx, now, windowEnd)
	if err != nil {
		return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_count_window_failed", err)
	}
	scheduledTotal, err := uc.Disbursements.CountAll(ctx)
	if err != nil {
		return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_count_total_failed", err)
	}

	capacity := services.RemainingCapacity(cmd.DailyTarget, cmd.LifetimeTarget, scheduledToday, scheduledTotal)
	if capacity.Allowed == 0 {
		logger.Info("schedule cycle quota exhausted",
			"event", "disbursement_schedule_quota_exhausted",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"reason", string(capacity.Reason),
			"scheduled_today", scheduledToday,
			"scheduled_total", scheduledTotal,
			"daily_target", cmd.DailyTarget,
			"lifetime_target", cmd.LifetimeTarget,
		)
		return ScheduleCycleResult{Reason: string(capacity.Reason)}, nil
	}

	candidates, err := uc.Identities.FindIdle(ctx, strings.TrimSpace(cmd.Chain), capacity.Allowed)
	if err != nil {
		return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_find_idle_failed", err)
	}
	if len(candidates) == 0 {
		logger.Warn("schedule cycle found no idle identities",
			"event", "disbursement_schedule_pool_empty",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"chain", strings.TrimSpace(cmd.Chain),
			"allowed", capacity.Allowed,
		)
		return ScheduleCycleResult{}, nil
	}

	candidateIDs := make([]string, 0, len(candidates))
	for _, identity := range candidates {
		candidateIDs = append(candidateIDs, identity.ID)
	}
	reserved, err := uc.Identities.Reserve(ctx, candidateIDs, now)
	if err != nil {
		return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_reserve_failed", err)
	}
	if len(reserved) < len(candidateIDs) {
		logger.Info("schedule cycle lost identities to a concurrent cycle",
			"event", "disbursement_schedule_reservation_contended",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"candidates", len(candidateIDs),
			"reserved", len(reserved),
		)
	}
	if len(reserved) == 0 {
		return ScheduleCycleResult{}, nil
	}

	random := uc.random()
	records := make([]entities.Disbursement, 0, len(reserved))
	for _, identityID := range reserved {
		id, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_id_generation_failed", err)
		}
		records = append(records, entities.Disbursement{
			ID:           id,
			IdentityID:   identityID,
			TokenRef:     tokenRef,
			Amount:       strconv.FormatInt(services.DrawAmount(random, upper), 10),
			Status:       entities.DisbursementStatusPending,
			ScheduledFor: services.DrawSendTime(random, now, windowEnd),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := uc.Disbursements.InsertDisbursements(ctx, records); err != nil {
		// Reserved identities stay RESERVED; status never moves backwards.
		return ScheduleCycleResult{}, uc.logFailure(logger, "disbursement_schedule_insert_failed", err,
			"reserved", len(reserved),
		)
	}

	logger.Info("schedule cycle completed",
		"event", "disbursement_schedule_completed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"scheduled_count", len(records),
		"allowed", capacity.Allowed,
		"window_start", now.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339),
	)
	return ScheduleCycleResult{ScheduledCount: len(records)}, nil
}

func (uc ScheduleCycleUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc ScheduleCycleUseCase) random() ports.Random {
	if uc.Random != nil {
		return uc.Random
	}
	return globalRandom{}
}

func (uc ScheduleCycleUseCase) logFailure(logger *slog.Logger, event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "treasury/disbursement-service",
		"layer", "application",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	logger.Error("schedule cycle failed", fields...)
	return err
}

type globalRandom struct{}

func (globalRandom) Int64N(n int64) int64 {
	return rand.Int64N(n)
}
