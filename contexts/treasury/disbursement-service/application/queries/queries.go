package queries

import (
	"context"
	"log/slog"
	"time"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

const defaultRecentLimit = 50

type StatusView struct {
	Running        bool
	NextPendingAt  *time.Time
	PendingCount   int
	SubmittedCount int
	ConfirmedCount int
	FailedCount    int
	IdleIdentities int
}

// IdentitySummary counts the recipient pool by lifecycle state.
type IdentitySummary struct {
	Total    int
	Idle     int
	Reserved int
	Spent    int
}

type SettingsView struct {
	TokenRef           string
	AmountCeiling      string
	TreasuryCredential string
	DailyTarget        int
	LifetimeTarget     int
	UpdatedAt          time.Time
}

type UseCase struct {
	Identities    ports.IdentityStore
	Disbursements ports.DisbursementStore
	Pool          ports.PoolRepository
	Settings      ports.SettingsProvider
	Runtime       ports.RuntimeControl
	Chain         string
	Logger        *slog.Logger
}

func (uc UseCase) Status(ctx context.Context) (StatusView, error) {
	logger := application.ResolveLogger(uc.Logger)
	view := StatusView{}
	if uc.Runtime != nil {
		view.Running = uc.Runtime.Running()
	}

	next, err := uc.Disbursements.NextPending(ctx)
	if err != nil {
		return StatusView{}, uc.logFailure(logger, "disbursement_query_status_failed", err)
	}
	if next != nil {
		scheduledFor := next.ScheduledFor
		view.NextPendingAt = &scheduledFor
	}

	counts := []struct {
		status entities.DisbursementStatus
		target *int
	}{
		{entities.DisbursementStatusPending, &view.PendingCount},
		{entities.DisbursementStatusSubmitted, &view.SubmittedCount},
		{entities.DisbursementStatusConfirmed, &view.ConfirmedCount},
		{entities.DisbursementStatusFailed, &view.FailedCount},
	}
	for _, item := range counts {
		count, err := uc.Disbursements.CountByStatus(ctx, item.status)
		if err != nil {
			return StatusView{}, uc.logFailure(logger, "disbursement_query_status_failed", err)
		}
		*item.target = count
	}

	idle, err := uc.Identities.CountIdentities(ctx, uc.Chain, entities.IdentityStatusIdle)
	if err != nil {
		return StatusView{}, uc.logFailure(logger, "disbursement_query_status_failed", err)
	}
	view.IdleIdentities = idle
	return view, nil
}

func (uc UseCase) IdentitySummary(ctx context.Context) (IdentitySummary, error) {
	logger := application.ResolveLogger(uc.Logger)
	summary := IdentitySummary{}
	counts := []struct {
		status entities.IdentityStatus
		target *int
	}{
		{"", &summary.Total},
		{entities.IdentityStatusIdle, &summary.Idle},
		{entities.IdentityStatusReserved, &summary.Reserved},
		{entities.IdentityStatusSpent, &summary.Spent},
	}
	for _, item := range counts {
		count, err := uc.Identities.CountIdentities(ctx, uc.Chain, item.status)
		if err != nil {
			return IdentitySummary{}, uc.logFailure(logger, "disbursement_query_identity_summary_failed", err)
		}
		*item.target = count
	}
	return summary, nil
}

func (uc UseCase) Recent(ctx context.Context, limit int) ([]entities.Disbursement, error) {
	logger := application.ResolveLogger(uc.Logger)
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	items, err := uc.Disbursements.ListRecent(ctx, limit)
	if err != nil {
		return nil, uc.logFailure(logger, "disbursement_query_recent_failed", err)
	}
	logger.Debug("disbursement query recent listed",
		"event", "disbursement_query_recent_listed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"limit", limit,
		"item_count", len(items),
	)
	return items, nil
}

// ListIdentities returns every identity ordered by creation time.
func (uc UseCase) ListIdentities(ctx context.Context) ([]entities.Identity, error) {
	logger := application.ResolveLogger(uc.Logger)
	items, err := uc.Pool.ListIdentities(ctx)
	if err != nil {
		return nil, uc.logFailure(logger, "disbursement_query_identities_failed", err)
	}
	return items, nil
}

// ViewSettings returns the settings in force with the treasury credential masked.
func (uc UseCase) ViewSettings(ctx context.Context) (SettingsView, error) {
	logger := application.ResolveLogger(uc.Logger)
	current, err := uc.Settings.Current(ctx)
	if err != nil {
		return SettingsView{}, uc.logFailure(logger, "disbursement_query_settings_failed", err)
	}
	return SettingsView{
		TokenRef:           current.TokenRef,
		AmountCeiling:      current.AmountCeiling,
		TreasuryCredential: services.MaskCredential(current.TreasuryCredential),
		DailyTarget:        current.DailyTarget,
		LifetimeTarget:     current.LifetimeTarget,
		UpdatedAt:          current.UpdatedAt,
	}, nil
}

func (uc UseCase) logFailure(logger *slog.Logger, event string, err error) error {
	logger.Warn("disbursement query failed",
		"event", event,
		"module", "treasury/disbursement-service",
		"layer", "application",
		"error", err.Error(),
	)
	return err
}
