package postgresadapter

import (
	"strings"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
)

type identityModel struct {
	ID         string     `gorm:"column:id;primaryKey"`
	Chain      string     `gorm:"column:chain;index:idx_identities_chain_status"`
	Address    string     `gorm:"column:address;uniqueIndex"`
	Secret     string     `gorm:"column:secret"`
	Status     string     `gorm:"column:status;index:idx_identities_chain_status"`
	ReservedAt *time.Time `gorm:"column:reserved_at"`
	SpentAt    *time.Time `gorm:"column:spent_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (identityModel) TableName() string {
	return "identities"
}

func identityModelFromEntity(identity entities.Identity) identityModel {
	return identityModel{
		ID:         strings.TrimSpace(identity.ID),
		Chain:      strings.TrimSpace(identity.Chain),
		Address:    strings.TrimSpace(identity.Address),
		Secret:     identity.Secret,
		Status:     string(identity.Status),
		ReservedAt: normalizeOptionalTime(identity.ReservedAt),
		SpentAt:    normalizeOptionalTime(identity.SpentAt),
		CreatedAt:  identity.CreatedAt.UTC(),
	}
}

func (m identityModel) toEntity() entities.Identity {
	return entities.Identity{
		ID:         m.ID,
		Chain:      m.Chain,
		Address:    m.Address,
		Secret:     m.Secret,
		Status:     entities.IdentityStatus(m.Status),
		ReservedAt: normalizeOptionalTime(m.ReservedAt),
		SpentAt:    normalizeOptionalTime(m.SpentAt),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func identitiesFromRows(rows []identityModel) []entities.Identity {
	items := make([]entities.Identity, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type disbursementModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	IdentityID    string    `gorm:"column:identity_id;index"`
	TokenRef      string    `gorm:"column:token_ref"`
	Amount        string    `gorm:"column:amount"`
	Status        string    `gorm:"column:status;index:idx_disbursements_status_scheduled"`
	ScheduledFor  time.Time `gorm:"column:scheduled_for;index:idx_disbursements_status_scheduled"`
	LedgerTxRef   string    `gorm:"column:ledger_tx_ref"`
	FailureReason string    `gorm:"column:failure_reason"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (disbursementModel) TableName() string {
	return "disbursements"
}

func disbursementModelFromEntity(record entities.Disbursement) disbursementModel {
	return disbursementModel{
		ID:            strings.TrimSpace(record.ID),
		IdentityID:    strings.TrimSpace(record.IdentityID),
		TokenRef:      strings.TrimSpace(record.TokenRef),
		Amount:        strings.TrimSpace(record.Amount),
		Status:        string(record.Status),
		ScheduledFor:  record.ScheduledFor.UTC(),
		LedgerTxRef:   strings.TrimSpace(record.LedgerTxRef),
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt.UTC(),
		UpdatedAt:     record.UpdatedAt.UTC(),
	}
}

func (m disbursementModel) toEntity() entities.Disbursement {
	return entities.Disbursement{
		ID:            m.ID,
		IdentityID:    m.IdentityID,
		TokenRef:      m.TokenRef,
		Amount:        m.Amount,
		Status:        entities.DisbursementStatus(m.Status),
		ScheduledFor:  m.ScheduledFor.UTC(),
		LedgerTxRef:   m.LedgerTxRef,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func disbursementsFromRows(rows []disbursementModel) []entities.Disbursement {
	items := make([]entities.Disbursement, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type settingsModel struct {
	SettingsKey        string    `gorm:"column:settings_key;primaryKey"`
	TokenRef           string    `gorm:"column:token_ref"`
	AmountCeiling      string    `gorm:"column:amount_ceiling"`
	TreasuryCredential string    `gorm:"column:treasury_credential"`
	DailyTarget        int       `gorm:"column:daily_target"`
	LifetimeTarget     int       `gorm:"column:lifetime_target"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (settingsModel) TableName() string {
	return "disbursement_settings"
}

func settingsModelFromEntity(settings entities.Settings) settingsModel {
	return settingsModel{
		SettingsKey:        settingsKey,
		TokenRef:           strings.TrimSpace(settings.TokenRef),
		AmountCeiling:      strings.TrimSpace(settings.AmountCeiling),
		TreasuryCredential: settings.TreasuryCredential,
		DailyTarget:        settings.DailyTarget,
		LifetimeTarget:     settings.LifetimeTarget,
		UpdatedAt:          settings.UpdatedAt.UTC(),
	}
}

func (m settingsModel) toEntity() entities.Settings {
	return entities.Settings{
		TokenRef:           m.TokenRef,
		AmountCeiling:      m.AmountCeiling,
		TreasuryCredential: m.TreasuryCredential,
		DailyTarget:        m.DailyTarget,
		LifetimeTarget:     m.LifetimeTarget,
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}
