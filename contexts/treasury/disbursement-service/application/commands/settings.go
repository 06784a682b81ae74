package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

// RuntimeDefaults carries the process-level values that settings fall back to
// and the constants delivered alongside them.
type RuntimeDefaults struct {
	Settings         entities.Settings
	Chain            string
	Decimals         int
	MinConfirmations int
	StopOnLifetime   bool
}

// UpdateSettingsCommand is a partial update: empty strings and nil targets keep
// the stored value.
type UpdateSettingsCommand struct {
	TokenRef           string
	AmountCeiling      string
	TreasuryCredential string
	DailyTarget        *int
	LifetimeTarget     *int
}

type SettingsUseCase struct {
	Repository ports.SettingsRepository
	Defaults   RuntimeDefaults
	Clock      ports.Clock
	Logger     *slog.Logger
}

var _ ports.SettingsProvider = SettingsUseCase{}

// Get returns the stored settings or the process defaults. Defaults are never
// persisted here.
func (uc SettingsUseCase) Get(ctx context.Context) (entities.Settings, error) {
	logger := application.ResolveLogger(uc.Logger)
	stored, found, err := uc.Repository.GetSettings(ctx)
	if err != nil {
		logger.Error("settings load failed",
			"event", "disbursement_settings_load_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Settings{}, err
	}
	if !found {
		return uc.Defaults.Settings, nil
	}
	return stored, nil
}

// Current implements ports.SettingsProvider.
func (uc SettingsUseCase) Current(ctx context.Context) (entities.RuntimeSettings, error) {
	settings, err := uc.Get(ctx)
	if err != nil {
		return entities.RuntimeSettings{}, err
	}
	return entities.RuntimeSettings{
		Settings:         settings,
		Chain:            uc.Defaults.Chain,
		Decimals:         uc.Defaults.Decimals,
		MinConfirmations: uc.Defaults.MinConfirmations,
		StopOnLifetime:   uc.Defaults.StopOnLifetime,
	}, nil
}

// Ensure persists the defaults once if no settings row exists yet.
func (uc SettingsUseCase) Ensure(ctx context.Context) (entities.Settings, error) {
	logger := application.ResolveLogger(uc.Logger)
	stored, found, err := uc.Repository.GetSettings(ctx)
	if err != nil {
		return entities.Settings{}, err
	}
	if found {
		return stored, nil
	}
	defaults := uc.Defaults.Settings
	defaults.UpdatedAt = uc.now()
	if err := uc.Repository.SaveSettings(ctx, defaults); err != nil {
		logger.Error("settings defaults persist failed",
			"event", "disbursement_settings_ensure_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Settings{}, err
	}
	logger.Info("settings defaults persisted",
		"event", "disbursement_settings_ensured",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"token_ref", defaults.TokenRef,
		"has_treasury_credential", defaults.TreasuryCredential != "",
	)
	return defaults, nil
}

func (uc SettingsUseCase) Update(ctx context.Context, cmd UpdateSettingsCommand) (entities.Settings, error) {
	logger := application.ResolveLogger(uc.Logger)
	current, err := uc.Get(ctx)
	if err != nil {
		return entities.Settings{}, err
	}

	next := current
	if value := strings.TrimSpace(cmd.TokenRef); value != "" {
		next.TokenRef = value
	}
	if value := strings.TrimSpace(cmd.AmountCeiling); value != "" {
		next.AmountCeiling = value
	}
	if value := strings.TrimSpace(cmd.TreasuryCredential); value != "" {
		next.TreasuryCredential = value
	}
	if cmd.DailyTarget != nil {
		next.DailyTarget = *cmd.DailyTarget
	}
	if cmd.LifetimeTarget != nil {
		next.LifetimeTarget = *cmd.LifetimeTarget
	}
	if err := services.ValidateSettings(next); err != nil {
		logger.Warn("settings update rejected",
			"event", "disbursement_settings_update_rejected",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Settings{}, err
	}

	next.UpdatedAt = uc.now()
	if err := uc.Repository.SaveSettings(ctx, next); err != nil {
		logger.Error("settings update persist failed",
			"event", "disbursement_settings_update_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Settings{}, err
	}
	logger.Info("settings updated",
		"event", "disbursement_settings_updated",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"token_ref", next.TokenRef,
		"amount_ceiling", next.AmountCeiling,
		"daily_target", next.DailyTarget,
		"lifetime_target", next.LifetimeTarget,
		"credential_changed", next.TreasuryCredential != current.TreasuryCredential,
	)
	return next, nil
}

func (uc SettingsUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
