package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSubmitBatchSize  = 10
	defaultConfirmBatchSize = 50
	submitRecordAttempts    = 3
)

var errEmptyTxRef = errors.New("ledger returned an empty transaction reference")

type SweepResult struct {
	Processed int
	Submitted int
	Confirmed int
	Failed    int
	Deferred  int
}

type TickResult struct {
	Submission   SweepResult
	Confirmation SweepResult
}

// SettlementUseCase drives PENDING disbursements through submission and
// SUBMITTED disbursements through finality. Every transition is a single
// conditional write; one record's failure never aborts the sweep.
type SettlementUseCase struct {
	Identities       ports.IdentityStore
	Disbursements    ports.DisbursementStore
	Settings         ports.SettingsProvider
	Ledger           ports.Ledger
	Notifier         ports.LifetimeTargetNotifier
	Latch            *services.LifetimeLatch
	Clock            ports.Clock
	SubmitBatchSize  int
	ConfirmBatchSize int
	Tracer           trace.Tracer
	Logger           *slog.Logger
}

// Tick runs the submission sweep to completion, then the confirmation sweep.
func (uc SettlementUseCase) Tick(ctx context.Context) (TickResult, error) {
	submission, submitErr := uc.Submit(ctx)
	confirmation, confirmErr := uc.Confirm(ctx)
	return TickResult{Submission: submission, Confirmation: confirmation}, errors.Join(submitErr, confirmErr)
}

func (uc SettlementUseCase) Submit(ctx context.Context) (SweepResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	ctx, span := uc.tracer().Start(ctx, "settlement.submit")
	defer span.End()

	now := uc.now()
	due, err := uc.Disbursements.ListPendingDue(ctx, now, positiveOr(uc.SubmitBatchSize, defaultSubmitBatchSize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pending failed")
		logger.Error("settlement submission list failed",
			"event", "settlement_submit_list_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return SweepResult{}, err
	}
	span.SetAttributes(attribute.Int("disbursement.due_count", len(due)))
	if len(due) == 0 {
		return SweepResult{}, nil
	}

	settings, err := uc.Settings.Current(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings load failed")
		logger.Error("settlement submission settings load failed",
			"event", "settlement_submit_settings_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return SweepResult{}, err
	}

	var result SweepResult
	for _, disbursement := range due {
		result.Processed++
		switch uc.submitOne(ctx, logger, settings, disbursement) {
		case entities.DisbursementStatusSubmitted:
			result.Submitted++
		case entities.DisbursementStatusFailed:
			result.Failed++
		default:
			result.Deferred++
		}
	}

	logger.Info("settlement submission sweep completed",
		"event", "settlement_submit_completed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"processed", result.Processed,
		"submitted", result.Submitted,
		"failed", result.Failed,
		"deferred", result.Deferred,
	)
	return result, nil
}

func (uc SettlementUseCase) submitOne(
	ctx context.Context,
	logger *slog.Logger,
	settings entities.RuntimeSettings,
	disbursement entities.Disbursement,
) entities.DisbursementStatus {
	if !settings.HasTreasuryCredential() {
		// No funds moved: the identity keeps its reservation.
		uc.fail(ctx, logger, disbursement, domainerrors.ErrMissingTreasuryCredential.Error(), false)
		return entities.DisbursementStatusFailed
	}

	identity, err := uc.Identities.GetIdentity(ctx, disbursement.IdentityID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdentityNotFound) {
			uc.fail(ctx, logger, disbursement, domainerrors.ErrIdentityNotFound.Error(), false)
			return entities.DisbursementStatusFailed
		}
		logger.Error("settlement identity lookup failed",
			"event", "settlement_submit_identity_lookup_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"identity_id", disbursement.IdentityID,
			"error", err.Error(),
		)
		return entities.DisbursementStatusPending
	}
	if identity.Status == entities.IdentityStatusSpent {
		// A transfer to this identity may already be on the ledger.
		uc.fail(ctx, logger, disbursement, domainerrors.ErrIdentityAlreadySpent.Error(), false)
		return entities.DisbursementStatusFailed
	}

	txRef, err := uc.Ledger.SubmitTransfer(
		ctx,
		settings.TreasuryCredential,
		disbursement.TokenRef,
		identity.Address,
		disbursement.Amount,
		settings.Decimals,
	)
	if err == nil && txRef == "" {
		err = domainerrors.NewLedgerError("submit", errEmptyTxRef)
	}
	if err != nil {
		// The transfer may have been broadcast; the identity is retired either way.
		logger.Warn("settlement transfer submission failed",
			"event", "settlement_submit_ledger_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"identity_id", disbursement.IdentityID,
			"error", err.Error(),
		)
		uc.fail(ctx, logger, disbursement, err.Error(), true)
		return entities.DisbursementStatusFailed
	}

	if err := uc.recordSubmitted(ctx, disbursement, txRef); err != nil {
		logger.Error("settlement submitted transfer could not be recorded",
			"event", "settlement_submit_record_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"identity_id", disbursement.IdentityID,
			"tx_ref", txRef,
			"error", err.Error(),
		)
		if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
			// Another writer moved the record; it owns the outcome.
			return entities.DisbursementStatusPending
		}
		// The transfer is on the ledger. Retire the identity before anything
		// else so the record can never be broadcast again.
		uc.markSpent(ctx, logger, disbursement.IdentityID, uc.now())
		disbursement.LedgerTxRef = txRef
		uc.fail(ctx, logger, disbursement, "record submitted transfer: "+err.Error(), true)
		return entities.DisbursementStatusFailed
	}

	logger.Info("settlement transfer submitted",
		"event", "settlement_submit_succeeded",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"disbursement_id", disbursement.ID,
		"identity_id", disbursement.IdentityID,
		"tx_ref", txRef,
		"amount", disbursement.Amount,
	)
	return entities.DisbursementStatusSubmitted
}

func (uc SettlementUseCase) Confirm(ctx context.Context) (SweepResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	ctx, span := uc.tracer().Start(ctx, "settlement.confirm")
	defer span.End()

	submitted, err := uc.Disbursements.ListSubmitted(ctx, positiveOr(uc.ConfirmBatchSize, defaultConfirmBatchSize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list submitted failed")
		logger.Error("settlement confirmation list failed",
			"event", "settlement_confirm_list_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return SweepResult{}, err
	}
	span.SetAttributes(attribute.Int("disbursement.submitted_count", len(submitted)))
	if len(submitted) == 0 {
		return SweepResult{}, nil
	}

	settings, err := uc.Settings.Current(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings load failed")
		logger.Error("settlement confirmation settings load failed",
			"event", "settlement_confirm_settings_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return SweepResult{}, err
	}

	var result SweepResult
	for _, disbursement := range submitted {
		result.Processed++
		switch uc.confirmOne(ctx, logger, settings, disbursement) {
		case entities.DisbursementStatusConfirmed:
			result.Confirmed++
		case entities.DisbursementStatusFailed:
			result.Failed++
		default:
			result.Deferred++
		}
	}

	logger.Info("settlement confirmation sweep completed",
		"event", "settlement_confirm_completed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"processed", result.Processed,
		"confirmed", result.Confirmed,
		"failed", result.Failed,
		"deferred", result.Deferred,
	)
	return result, nil
}

func (uc SettlementUseCase) confirmOne(
	ctx context.Context,
	logger *slog.Logger,
	settings entities.RuntimeSettings,
	disbursement entities.Disbursement,
) entities.DisbursementStatus {
	if disbursement.LedgerTxRef == "" {
		uc.fail(ctx, logger, disbursement, domainerrors.ErrMissingLedgerReference.Error(), true)
		return entities.DisbursementStatusFailed
	}

	finality, err := uc.Ledger.GetFinality(ctx, disbursement.LedgerTxRef)
	if err != nil {
		uc.fail(ctx, logger, disbursement, err.Error(), true)
		return entities.DisbursementStatusFailed
	}
	if finality == nil || !finality.Final {
		logger.Debug("settlement transfer not final yet",
			"event", "settlement_confirm_not_final",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"tx_ref", disbursement.LedgerTxRef,
		)
		return entities.DisbursementStatusSubmitted
	}
	if finality.Confirmations < settings.MinConfirmations {
		logger.Debug("settlement transfer below confirmation threshold",
			"event", "settlement_confirm_insufficient_confirmations",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"tx_ref", disbursement.LedgerTxRef,
			"confirmations", finality.Confirmations,
			"min_confirmations", settings.MinConfirmations,
		)
		return entities.DisbursementStatusSubmitted
	}
	if !finality.Success {
		uc.fail(ctx, logger, disbursement, domainerrors.ErrTransactionReverted.Error(), true)
		return entities.DisbursementStatusFailed
	}

	now := uc.now()
	if err := uc.Disbursements.UpdateStatus(ctx, entities.StatusUpdate{
		DisbursementID: disbursement.ID,
		ExpectedStatus: entities.DisbursementStatusSubmitted,
		Status:         entities.DisbursementStatusConfirmed,
		LedgerTxRef:    disbursement.LedgerTxRef,
		UpdatedAt:      now,
	}); err != nil {
		logger.Warn("settlement confirmation write skipped",
			"event", "settlement_confirm_record_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"tx_ref", disbursement.LedgerTxRef,
			"error", err.Error(),
		)
		return entities.DisbursementStatusSubmitted
	}
	uc.markSpent(ctx, logger, disbursement.IdentityID, now)

	logger.Info("settlement transfer confirmed",
		"event", "settlement_confirm_succeeded",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"disbursement_id", disbursement.ID,
		"identity_id", disbursement.IdentityID,
		"tx_ref", disbursement.LedgerTxRef,
		"confirmations", finality.Confirmations,
	)
	uc.checkLifetimeTarget(ctx, logger, settings)
	return entities.DisbursementStatusConfirmed
}

func (uc SettlementUseCase) checkLifetimeTarget(
	ctx context.Context,
	logger *slog.Logger,
	settings entities.RuntimeSettings,
) {
	if !settings.StopOnLifetime || settings.LifetimeTarget <= 0 || uc.Notifier == nil {
		return
	}
	confirmed, err := uc.Disbursements.CountByStatus(ctx, entities.DisbursementStatusConfirmed)
	if err != nil {
		logger.Error("settlement lifetime count failed",
			"event", "settlement_lifetime_count_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return
	}
	if uc.Latch != nil {
		if !uc.Latch.Observe(confirmed, settings.LifetimeTarget) {
			return
		}
	} else if confirmed < settings.LifetimeTarget {
		return
	}

	logger.Info("settlement lifetime target reached",
		"event", "settlement_lifetime_target_reached",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"confirmed_count", confirmed,
		"lifetime_target", settings.LifetimeTarget,
	)
	uc.Notifier.OnLifetimeTargetReached(confirmed)
}

// recordSubmitted writes the SUBMITTED transition, retrying transient store
// errors. A lost conditional write is returned at once.
func (uc SettlementUseCase) recordSubmitted(ctx context.Context, disbursement entities.Disbursement, txRef string) error {
	var err error
	for attempt := 0; attempt < submitRecordAttempts; attempt++ {
		err = uc.Disbursements.UpdateStatus(ctx, entities.StatusUpdate{
			DisbursementID: disbursement.ID,
			ExpectedStatus: entities.DisbursementStatusPending,
			Status:         entities.DisbursementStatusSubmitted,
			LedgerTxRef:    txRef,
			UpdatedAt:      uc.now(),
		})
		if err == nil || errors.Is(err, domainerrors.ErrInvalidStateTransition) || errors.Is(err, domainerrors.ErrDisbursementNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// fail records a terminal FAILED transition and, when spend is set, retires the identity.
func (uc SettlementUseCase) fail(
	ctx context.Context,
	logger *slog.Logger,
	disbursement entities.Disbursement,
	reason string,
	spend bool,
) {
	now := uc.now()
	if err := uc.Disbursements.UpdateStatus(ctx, entities.StatusUpdate{
		DisbursementID: disbursement.ID,
		ExpectedStatus: disbursement.Status,
		Status:         entities.DisbursementStatusFailed,
		LedgerTxRef:    disbursement.LedgerTxRef,
		FailureReason:  reason,
		UpdatedAt:      now,
	}); err != nil {
		logger.Warn("settlement failure write skipped",
			"event", "settlement_fail_record_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"disbursement_id", disbursement.ID,
			"failure_reason", reason,
			"error", err.Error(),
		)
		return
	}
	logger.Warn("settlement disbursement failed",
		"event", "settlement_disbursement_failed",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"disbursement_id", disbursement.ID,
		"identity_id", disbursement.IdentityID,
		"previous_status", disbursement.Status,
		"failure_reason", reason,
	)
	if spend {
		uc.markSpent(ctx, logger, disbursement.IdentityID, now)
	}
}

func (uc SettlementUseCase) markSpent(ctx context.Context, logger *slog.Logger, identityID string, at time.Time) {
	if err := uc.Identities.MarkSpent(ctx, identityID, at); err != nil {
		logger.Error("settlement identity spend failed",
			"event", "settlement_identity_spend_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"identity_id", identityID,
			"error", err.Error(),
		)
	}
}

func (uc SettlementUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc SettlementUseCase) tracer() trace.Tracer {
	if uc.Tracer != nil {
		return uc.Tracer
	}
	return otel.Tracer("tokendrip/disbursement-service")
}

func positiveOr(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
