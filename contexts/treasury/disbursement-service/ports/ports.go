package ports

import (
	"context"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
)

// IdentityStore is the engine's view of the recipient pool.
type IdentityStore interface {
	FindIdle(ctx context.Context, chain string, limit int) ([]entities.Identity, error)
	// Reserve must move each identity IDLE -> RESERVED with a single conditional
	// write and return only the ids it actually reserved. Identities lost to a
	// concurrent cycle are omitted, never returned twice.
	Reserve(ctx context.Context, identityIDs []string, reservedAt time.Time) ([]string, error)
	MarkSpent(ctx context.Context, identityID string, spentAt time.Time) error
	GetIdentity(ctx context.Context, identityID string) (entities.Identity, error)
	CountIdentities(ctx context.Context, chain string, status entities.IdentityStatus) (int, error)
}

// PoolRepository owns identity creation and listing for replenishment/export.
type PoolRepository interface {
	InsertIdentities(ctx context.Context, identities []entities.Identity) error
	ListIdentities(ctx context.Context) ([]entities.Identity, error)
}

// DisbursementStore persists disbursement records and their transitions.
type DisbursementStore interface {
	CountScheduledBetween(ctx context.Context, start time.Time, end time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
	InsertDisbursements(ctx context.Context, records []entities.Disbursement) error
	ListPendingDue(ctx context.Context, scheduledBefore time.Time, limit int) ([]entities.Disbursement, error)
	ListSubmitted(ctx context.Context, limit int) ([]entities.Disbursement, error)
	// UpdateStatus applies the update only if the record is still in ExpectedStatus.
	UpdateStatus(ctx context.Context, update entities.StatusUpdate) error
	CountByStatus(ctx context.Context, status entities.DisbursementStatus) (int, error)
	NextPending(ctx context.Context) (*entities.Disbursement, error)
	ListRecent(ctx context.Context, limit int) ([]entities.Disbursement, error)
}

// Purger clears both collections for the administrative reset.
type Purger interface {
	PurgeAll(ctx context.Context) error
}

// SettingsRepository persists the single settings row.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (entities.Settings, bool, error)
	SaveSettings(ctx context.Context, settings entities.Settings) error
}

// SettingsProvider yields the settings in force for the current cycle or tick.
type SettingsProvider interface {
	Current(ctx context.Context) (entities.RuntimeSettings, error)
}

// Finality is the ledger's view of a submitted transfer.
type Finality struct {
	Final         bool
	Confirmations int
	Success       bool
}

// Ledger submits transfers and reports their finality. It is remote and fallible.
type Ledger interface {
	SubmitTransfer(
		ctx context.Context,
		credential string,
		tokenRef string,
		toAddress string,
		amount string,
		decimals int,
	) (string, error)
	// GetFinality returns nil without error while the transfer is not yet visible.
	GetFinality(ctx context.Context, txRef string) (*Finality, error)
}

// KeyPair is a freshly generated recipient address and its secret.
type KeyPair struct {
	Address string
	Secret  string
}

type KeyGenerator interface {
	Generate(chain string) (KeyPair, error)
}

// IdentityExporter writes newly created identities to an external sink and
// returns where they were written.
type IdentityExporter interface {
	Export(ctx context.Context, identities []entities.Identity) (string, error)
}

// LifetimeTargetNotifier receives the signal that confirmed transfers reached the lifetime target.
type LifetimeTargetNotifier interface {
	OnLifetimeTargetReached(confirmed int)
}

// RuntimeControl is the slice of the runtime controller that commands may drive.
type RuntimeControl interface {
	Start()
	Stop()
	Running() bool
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type Random interface {
	Int64N(n int64) int64
}
