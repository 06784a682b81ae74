package httpadapter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/adapters/export"
	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/application/queries"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/ports"
	httptransport "tokendrip/contexts/treasury/disbursement-service/transport/http"
)

type Handler struct {
	Scheduler  commands.ScheduleCycleUseCase
	Settlement commands.SettlementUseCase
	Settings   commands.SettingsUseCase
	Reset      commands.ResetUseCase
	Queries    queries.UseCase
	Runtime    ports.RuntimeControl
	Logger     *slog.Logger
}

func (h Handler) GetSettingsHandler(ctx context.Context) (httptransport.SettingsResponse, error) {
	view, err := h.Queries.ViewSettings(ctx)
	if err != nil {
		return httptransport.SettingsResponse{}, err
	}
	return settingsResponse(view), nil
}

func (h Handler) UpdateSettingsHandler(
	ctx context.Context,
	req httptransport.UpdateSettingsRequest,
) (httptransport.SettingsResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	if _, err := h.Settings.Update(ctx, commands.UpdateSettingsCommand{
		TokenRef:           req.TokenRef,
		AmountCeiling:      req.AmountCeiling,
		TreasuryCredential: req.TreasuryCredential,
		DailyTarget:        req.DailyTarget,
		LifetimeTarget:     req.LifetimeTarget,
	}); err != nil {
		logger.Warn("disbursement http update settings failed",
			"event", "disbursement_http_update_settings_failed",
			"module", "treasury/disbursement-service",
			"layer", "adapter",
			"error", err.Error(),
		)
		return httptransport.SettingsResponse{}, err
	}
	return h.GetSettingsHandler(ctx)
}

func (h Handler) StatusHandler(ctx context.Context) (httptransport.StatusResponse, error) {
	view, err := h.Queries.Status(ctx)
	if err != nil {
		return httptransport.StatusResponse{}, err
	}
	resp := httptransport.StatusResponse{
		Running:        view.Running,
		PendingCount:   view.PendingCount,
		SubmittedCount: view.SubmittedCount,
		ConfirmedCount: view.ConfirmedCount,
		FailedCount:    view.FailedCount,
		IdleIdentities: view.IdleIdentities,
	}
	if view.NextPendingAt != nil {
		resp.NextPendingAt = view.NextPendingAt.UTC().Format(time.RFC3339)
	}
	return resp, nil
}

func (h Handler) IdentitySummaryHandler(ctx context.Context) (httptransport.IdentitySummaryResponse, error) {
	summary, err := h.Queries.IdentitySummary(ctx)
	if err != nil {
		return httptransport.IdentitySummaryResponse{}, err
	}
	return httptransport.IdentitySummaryResponse{
		Total:    summary.Total,
		Unused:   summary.Idle,
		Reserved: summary.Reserved,
		Used:     summary.Spent,
	}, nil
}

func (h Handler) StartHandler(_ context.Context) (httptransport.RuntimeResponse, error) {
	if h.Runtime == nil {
		return httptransport.RuntimeResponse{}, domainerrors.ErrRuntimeUnavailable
	}
	h.Runtime.Start()
	h.logRuntime("disbursement_http_runtime_started")
	return httptransport.RuntimeResponse{Running: h.Runtime.Running()}, nil
}

func (h Handler) StopHandler(_ context.Context) (httptransport.RuntimeResponse, error) {
	if h.Runtime == nil {
		return httptransport.RuntimeResponse{}, domainerrors.ErrRuntimeUnavailable
	}
	h.Runtime.Stop()
	h.logRuntime("disbursement_http_runtime_stopped")
	return httptransport.RuntimeResponse{Running: h.Runtime.Running()}, nil
}

func (h Handler) ResetHandler(ctx context.Context) (httptransport.ResetResponse, error) {
	if h.Runtime == nil {
		return httptransport.ResetResponse{}, domainerrors.ErrRuntimeUnavailable
	}
	result, err := h.Reset.Run(ctx)
	if err != nil {
		return httptransport.ResetResponse{}, err
	}
	return httptransport.ResetResponse{Reset: true, Created: result.Created}, nil
}

func (h Handler) RunScheduleHandler(ctx context.Context) (httptransport.ScheduleRunResponse, error) {
	result, err := h.Scheduler.RunWithSettings(ctx)
	if err != nil {
		return httptransport.ScheduleRunResponse{}, err
	}
	return httptransport.ScheduleRunResponse{
		ScheduledCount: result.ScheduledCount,
		Reason:         result.Reason,
	}, nil
}

func (h Handler) RunSettlementHandler(ctx context.Context) (httptransport.SettleRunResponse, error) {
	result, err := h.Settlement.Tick(ctx)
	if err != nil {
		return httptransport.SettleRunResponse{}, err
	}
	return httptransport.SettleRunResponse{
		Submission:   sweepDTO(result.Submission),
		Confirmation: sweepDTO(result.Confirmation),
	}, nil
}

func (h Handler) RecentHandler(ctx context.Context, limit int) (httptransport.RecentResponse, error) {
	items, err := h.Queries.Recent(ctx, limit)
	if err != nil {
		return httptransport.RecentResponse{}, err
	}
	resp := httptransport.RecentResponse{Items: make([]httptransport.DisbursementDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, disbursementDTO(item))
	}
	return resp, nil
}

// ExportIdentitiesHandler streams every identity, secrets included, as CSV.
func (h Handler) ExportIdentitiesHandler(ctx context.Context, w io.Writer) error {
	logger := application.ResolveLogger(h.Logger)
	identities, err := h.Queries.ListIdentities(ctx)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, identities); err != nil {
		return err
	}
	logger.Warn("disbursement http identities exported",
		"event", "disbursement_http_identities_exported",
		"module", "treasury/disbursement-service",
		"layer", "adapter",
		"count", len(identities),
	)
	return nil
}

func (h Handler) logRuntime(event string) {
	application.ResolveLogger(h.Logger).Info("disbursement runtime toggled",
		"event", event,
		"module", "treasury/disbursement-service",
		"layer", "adapter",
		"running", h.Runtime.Running(),
	)
}

func settingsResponse(view queries.SettingsView) httptransport.SettingsResponse {
	resp := httptransport.SettingsResponse{
		TokenRef:           view.TokenRef,
		AmountCeiling:      view.AmountCeiling,
		TreasuryCredential: view.TreasuryCredential,
		DailyTarget:        view.DailyTarget,
		LifetimeTarget:     view.LifetimeTarget,
	}
	if !view.UpdatedAt.IsZero() {
		resp.UpdatedAt = view.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func sweepDTO(result commands.SweepResult) httptransport.SweepDTO {
	return httptransport.SweepDTO{
		Processed: result.Processed,
		Submitted: result.Submitted,
		Confirmed: result.Confirmed,
		Failed:    result.Failed,
		Deferred:  result.Deferred,
	}
}

func disbursementDTO(item entities.Disbursement) httptransport.DisbursementDTO {
	return httptransport.DisbursementDTO{
		ID:            item.ID,
		IdentityID:    item.IdentityID,
		TokenRef:      item.TokenRef,
		Amount:        item.Amount,
		Status:        string(item.Status),
		ScheduledFor:  item.ScheduledFor.UTC().Format(time.RFC3339),
		LedgerTxRef:   item.LedgerTxRef,
		FailureReason: item.FailureReason,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
