package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsKey = "default"

// Repository is the gorm-backed store for identities, disbursements and
// settings. It runs against Postgres in production and SQLite locally.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) FindIdle(ctx context.Context, chain string, limit int) ([]entities.Identity, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", string(entities.IdentityStatusIdle))
	if chain = strings.TrimSpace(chain); chain != "" {
		query = query.Where("chain = ?", chain)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []identityModel
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("disbursement_repo_find_idle_failed", err,
			"chain", chain,
			"limit", limit,
		)
	}
	return identitiesFromRows(rows), nil
}

func (r *Repository) Reserve(ctx context.Context, identityIDs []string, reservedAt time.Time) ([]string, error) {
	reserved := make([]string, 0, len(identityIDs))
	at := reservedAt.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range identityIDs {
			result := tx.Model(&identityModel{}).
				Where("id = ?", strings.TrimSpace(id)).
				Where("status = ?", string(entities.IdentityStatusIdle)).
				Updates(map[string]any{
					"status":      string(entities.IdentityStatusReserved),
					"reserved_at": at,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				reserved = append(reserved, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.logError("disbursement_repo_reserve_failed", err,
			"candidate_count", len(identityIDs),
		)
	}
	return reserved, nil
}

func (r *Repository) MarkSpent(ctx context.Context, identityID string, spentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("id = ?", strings.TrimSpace(identityID)).
		Where("status <> ?", string(entities.IdentityStatusSpent)).
		Updates(map[string]any{
			"status":   string(entities.IdentityStatusSpent),
			"spent_at": spentAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("disbursement_repo_mark_spent_failed", result.Error,
			"identity_id", strings.TrimSpace(identityID),
		)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetIdentity(ctx, identityID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetIdentity(ctx context.Context, identityID string) (entities.Identity, error) {
	var row identityModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(identityID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Identity{}, domainerrors.ErrIdentityNotFound
		}
		return entities.Identity{}, r.logError("disbursement_repo_get_identity_failed", err,
			"identity_id", strings.TrimSpace(identityID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) CountIdentities(ctx context.Context, chain string, status entities.IdentityStatus) (int, error) {
	query := r.db.WithContext(ctx).Model(&identityModel{})
	if chain = strings.TrimSpace(chain); chain != "" {
		query = query.Where("chain = ?", chain)
	}
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, r.logError("disbursement_repo_count_identities_failed", err,
			"chain", chain,
			"status", string(status),
		)
	}
	return int(count), nil
}

func (r *Repository) InsertIdentities(ctx context.Context, identities []entities.Identity) error {
	if len(identities) == 0 {
		return nil
	}
	rows := make([]identityModel, 0, len(identities))
	for _, identity := range identities {
		rows = append(rows, identityModelFromEntity(identity))
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&rows, 100).Error; err != nil {
		return r.logError("disbursement_repo_insert_identities_failed", err,
			"count", len(identities),
		)
	}
	return nil
}

func (r *Repository) ListIdentities(ctx context.Context) ([]entities.Identity, error) {
	var rows []identityModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("disbursement_repo_list_identities_failed", err)
	}
	return identitiesFromRows(rows), nil
}

func (r *Repository) CountScheduledBetween(ctx context.Context, start time.Time, end time.Time) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&disbursementModel{}).
		Where("scheduled_for >= ?", start.UTC()).
		Where("scheduled_for < ?", end.UTC()).
		Count(&count).Error; err != nil {
		return 0, r.logError("disbursement_repo_count_window_failed", err,
			"window_start", start.UTC().Format(time.RFC3339),
			"window_end", end.UTC().Format(time.RFC3339),
		)
	}
	return int(count), nil
}

func (r *Repository) CountAll(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&disbursementModel{}).Count(&count).Error; err != nil {
		return 0, r.logError("disbursement_repo_count_all_failed", err)
	}
	return int(count), nil
}

func (r *Repository) InsertDisbursements(ctx context.Context, records []entities.Disbursement) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]disbursementModel, 0, len(records))
	for _, record := range records {
		rows = append(rows, disbursementModelFromEntity(record))
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			r.logWarn("disbursement_repo_insert_identity_conflict",
				"count", len(records),
			)
			return domainerrors.ErrIdentityAlreadyClaimed
		}
		return r.logError("disbursement_repo_insert_disbursements_failed", err,
			"count", len(records),
		)
	}
	return nil
}

func (r *Repository) ListPendingDue(ctx context.Context, scheduledBefore time.Time, limit int) ([]entities.Disbursement, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", string(entities.DisbursementStatusPending)).
		Where("scheduled_for <= ?", scheduledBefore.UTC()).
		Order("scheduled_for ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []disbursementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("disbursement_repo_list_pending_due_failed", err,
			"scheduled_before", scheduledBefore.UTC().Format(time.RFC3339),
			"limit", limit,
		)
	}
	return disbursementsFromRows(rows), nil
}

func (r *Repository) ListSubmitted(ctx context.Context, limit int) ([]entities.Disbursement, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", string(entities.DisbursementStatusSubmitted)).
		Order("updated_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []disbursementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("disbursement_repo_list_submitted_failed", err,
			"limit", limit,
		)
	}
	return disbursementsFromRows(rows), nil
}

func (r *Repository) UpdateStatus(ctx context.Context, update entities.StatusUpdate) error {
	disbursementID := strings.TrimSpace(update.DisbursementID)
	if !services.CanTransition(update.ExpectedStatus, update.Status) {
		r.logWarn("disbursement_repo_update_status_rejected",
			"disbursement_id", disbursementID,
			"from_status", string(update.ExpectedStatus),
			"to_status", string(update.Status),
		)
		return domainerrors.ErrInvalidStateTransition
	}

	updates := map[string]any{
		"status":     string(update.Status),
		"updated_at": update.UpdatedAt.UTC(),
	}
	if update.LedgerTxRef != "" {
		updates["ledger_tx_ref"] = update.LedgerTxRef
	}
	if update.FailureReason != "" {
		updates["failure_reason"] = update.FailureReason
	}
	result := r.db.WithContext(ctx).
		Model(&disbursementModel{}).
		Where("id = ?", disbursementID).
		Where("status = ?", string(update.ExpectedStatus)).
		Updates(updates)
	if result.Error != nil {
		return r.logError("disbursement_repo_update_status_failed", result.Error,
			"disbursement_id", disbursementID,
			"to_status", string(update.Status),
		)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&disbursementModel{}).
			Where("id = ?", disbursementID).
			Count(&count).Error; err != nil {
			return r.logError("disbursement_repo_update_status_lookup_failed", err,
				"disbursement_id", disbursementID,
			)
		}
		if count == 0 {
			return domainerrors.ErrDisbursementNotFound
		}
		r.logWarn("disbursement_repo_update_status_conflict",
			"disbursement_id", disbursementID,
			"expected_status", string(update.ExpectedStatus),
			"to_status", string(update.Status),
		)
		return domainerrors.ErrInvalidStateTransition
	}
	return nil
}

func (r *Repository) CountByStatus(ctx context.Context, status entities.DisbursementStatus) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&disbursementModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error; err != nil {
		return 0, r.logError("disbursement_repo_count_by_status_failed", err,
			"status", string(status),
		)
	}
	return int(count), nil
}

func (r *Repository) NextPending(ctx context.Context) (*entities.Disbursement, error) {
	var row disbursementModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.DisbursementStatusPending)).
		Order("scheduled_for ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.logError("disbursement_repo_next_pending_failed", err)
	}
	record := row.toEntity()
	return &record, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]entities.Disbursement, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("scheduled_for DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []disbursementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("disbursement_repo_list_recent_failed", err,
			"limit", limit,
		)
	}
	return disbursementsFromRows(rows), nil
}

func (r *Repository) PurgeAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&disbursementModel{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&identityModel{}).Error
	})
	if err != nil {
		return r.logError("disbursement_repo_purge_failed", err)
	}
	return nil
}

func (r *Repository) GetSettings(ctx context.Context) (entities.Settings, bool, error) {
	var row settingsModel
	err := r.db.WithContext(ctx).
		Where("settings_key = ?", settingsKey).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Settings{}, false, nil
		}
		return entities.Settings{}, false, r.logError("disbursement_repo_get_settings_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveSettings(ctx context.Context, settings entities.Settings) error {
	row := settingsModelFromEntity(settings)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "settings_key"}},
			UpdateAll: true,
		}).
		Create(&row).Error; err != nil {
		return r.logError("disbursement_repo_save_settings_failed", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "treasury/disbursement-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("disbursement repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "treasury/disbursement-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("disbursement repository warning", fields...)
}

var _ ports.IdentityStore = (*Repository)(nil)
var _ ports.PoolRepository = (*Repository)(nil)
var _ ports.DisbursementStore = (*Repository)(nil)
var _ ports.Purger = (*Repository)(nil)
var _ ports.SettingsRepository = (*Repository)(nil)
