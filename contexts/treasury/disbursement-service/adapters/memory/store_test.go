package memory

import (
	"context"
	"testing"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2026, time.February, 5, 12, 0, 0, 0, time.UTC)

func seedIdentities() []entities.Identity {
	return []entities.Identity{
		{ID: "b", Chain: "bnb", Address: "0xb", Status: entities.IdentityStatusIdle, CreatedAt: storeNow.Add(2 * time.Minute)},
		{ID: "a", Chain: "bnb", Address: "0xa", Status: entities.IdentityStatusIdle, CreatedAt: storeNow.Add(time.Minute)},
		{ID: "c", Chain: "eth", Address: "0xc", Status: entities.IdentityStatusIdle, CreatedAt: storeNow},
		{ID: "s", Chain: "bnb", Address: "0xs", Status: entities.IdentityStatusSpent, CreatedAt: storeNow},
	}
}

func TestFindIdleFiltersAndOrders(t *testing.T) {
	store := NewStore(seedIdentities())

	items, err := store.FindIdle(context.Background(), "bnb", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)

	items, err = store.FindIdle(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].ID)
}

func TestReserveOnlyTakesIdleIdentities(t *testing.T) {
	store := NewStore(seedIdentities())

	reserved, err := store.Reserve(context.Background(), []string{"a", "s", "missing"}, storeNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reserved)

	again, err := store.Reserve(context.Background(), []string{"a", "b"}, storeNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, again)

	identity, err := store.GetIdentity(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, entities.IdentityStatusReserved, identity.Status)
	require.NotNil(t, identity.ReservedAt)
	assert.Equal(t, storeNow, *identity.ReservedAt)
}

func TestMarkSpentIsIdempotent(t *testing.T) {
	store := NewStore(seedIdentities())

	require.NoError(t, store.MarkSpent(context.Background(), "a", storeNow))
	require.NoError(t, store.MarkSpent(context.Background(), "a", storeNow.Add(time.Hour)))

	identity, err := store.GetIdentity(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, entities.IdentityStatusSpent, identity.Status)
	assert.Equal(t, storeNow, *identity.SpentAt)

	assert.ErrorIs(t, store.MarkSpent(context.Background(), "missing", storeNow), domainerrors.ErrIdentityNotFound)
}

func disbursement(id string, identityID string, status entities.DisbursementStatus, scheduledFor time.Time) entities.Disbursement {
	return entities.Disbursement{
		ID:           id,
		IdentityID:   identityID,
		TokenRef:     "0xtoken",
		Amount:       "5",
		Status:       status,
		ScheduledFor: scheduledFor,
		CreatedAt:    scheduledFor.Add(-time.Hour),
		UpdatedAt:    scheduledFor.Add(-time.Hour),
	}
}

func TestInsertDisbursementsRejectsSecondLiveRecordForIdentity(t *testing.T) {
	store := NewStore(seedIdentities())
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-1", "a", entities.DisbursementStatusPending, storeNow),
	}))

	err := store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-2", "b", entities.DisbursementStatusPending, storeNow),
		disbursement("d-3", "a", entities.DisbursementStatusPending, storeNow),
	})
	assert.ErrorIs(t, err, domainerrors.ErrIdentityAlreadyClaimed)

	_, inserted := store.disbursements["d-2"]
	assert.False(t, inserted, "batch must be all-or-nothing")
}

func TestInsertDisbursementsAllowsRetryAfterFailure(t *testing.T) {
	store := NewStore(seedIdentities())
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-1", "a", entities.DisbursementStatusFailed, storeNow),
	}))
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-2", "a", entities.DisbursementStatusPending, storeNow),
	}))
}

func TestUpdateStatusIsConditional(t *testing.T) {
	store := NewStore(seedIdentities())
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-1", "a", entities.DisbursementStatusPending, storeNow),
	}))

	err := store.UpdateStatus(context.Background(), entities.StatusUpdate{
		DisbursementID: "d-1",
		ExpectedStatus: entities.DisbursementStatusPending,
		Status:         entities.DisbursementStatusSubmitted,
		LedgerTxRef:    "0xabc",
		UpdatedAt:      storeNow,
	})
	require.NoError(t, err)

	// A second writer still expecting PENDING loses.
	err = store.UpdateStatus(context.Background(), entities.StatusUpdate{
		DisbursementID: "d-1",
		ExpectedStatus: entities.DisbursementStatusPending,
		Status:         entities.DisbursementStatusFailed,
		UpdatedAt:      storeNow,
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidStateTransition)

	err = store.UpdateStatus(context.Background(), entities.StatusUpdate{
		DisbursementID: "d-1",
		ExpectedStatus: entities.DisbursementStatusSubmitted,
		Status:         entities.DisbursementStatusPending,
		UpdatedAt:      storeNow,
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidStateTransition)

	err = store.UpdateStatus(context.Background(), entities.StatusUpdate{DisbursementID: "missing"})
	assert.ErrorIs(t, err, domainerrors.ErrDisbursementNotFound)

	record, ok := store.disbursements["d-1"]
	require.True(t, ok)
	assert.Equal(t, entities.DisbursementStatusSubmitted, record.Status)
	assert.Equal(t, "0xabc", record.LedgerTxRef)
}

func TestDisbursementQueries(t *testing.T) {
	store := NewStore(seedIdentities())
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("late", "a", entities.DisbursementStatusPending, storeNow.Add(2*time.Hour)),
		disbursement("due", "b", entities.DisbursementStatusPending, storeNow.Add(-time.Minute)),
		disbursement("sent", "c", entities.DisbursementStatusSubmitted, storeNow.Add(-time.Hour)),
		disbursement("past", "s", entities.DisbursementStatusConfirmed, storeNow.Add(-30*time.Hour)),
	}))

	due, err := store.ListPendingDue(context.Background(), storeNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	submitted, err := store.ListSubmitted(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "sent", submitted[0].ID)

	window, err := store.CountScheduledBetween(context.Background(), storeNow, storeNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, window)

	total, err := store.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	confirmed, err := store.CountByStatus(context.Background(), entities.DisbursementStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	next, err := store.NextPending(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "due", next.ID)

	recent, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "late", recent[0].ID)
}

func TestPurgeAllClearsIdentitiesAndDisbursementsButKeepsSettings(t *testing.T) {
	store := NewStore(seedIdentities())
	require.NoError(t, store.SaveSettings(context.Background(), entities.Settings{TokenRef: "0xtoken"}))
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		disbursement("d-1", "a", entities.DisbursementStatusPending, storeNow),
	}))

	require.NoError(t, store.PurgeAll(context.Background()))

	identities, err := store.ListIdentities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, identities)
	total, err := store.CountAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)

	settings, found, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "0xtoken", settings.TokenRef)
}
