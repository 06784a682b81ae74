package postgresadapter

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// liveIdentityIndex keeps at most one non-FAILED disbursement per identity.
const liveIdentityIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_disbursements_live_identity
	ON disbursements (identity_id) WHERE status <> 'FAILED'`

// Migrate creates or updates the tables this adapter owns. The statements are
// valid on both Postgres and SQLite.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&identityModel{},
		&disbursementModel{},
		&settingsModel{},
	); err != nil {
		return fmt.Errorf("auto migrate disbursement tables: %w", err)
	}
	if err := db.WithContext(ctx).Exec(liveIdentityIndex).Error; err != nil {
		return fmt.Errorf("create live identity index: %w", err)
	}
	return nil
}
