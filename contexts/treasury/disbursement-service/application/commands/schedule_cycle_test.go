package commands_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/adapters/memory"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(store *memory.Store) commands.ScheduleCycleUseCase {
	return commands.ScheduleCycleUseCase{
		Identities:    store,
		Disbursements: store,
		Settings:      settingsFor(store, testDefaults()),
		Clock:         fixedClock{now: testNow},
		IDGenerator:   store,
	}
}

func TestScheduleCycleCreatesPendingDisbursementsWithinBounds(t *testing.T) {
	store := memory.NewStore(idleIdentities(5, "bnb"))
	scheduler := newScheduler(store)

	result, err := scheduler.Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ScheduledCount)
	assert.Empty(t, result.Reason)

	records, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	seen := map[string]bool{}
	for _, record := range records {
		assert.Equal(t, entities.DisbursementStatusPending, record.Status)
		assert.Equal(t, testToken, record.TokenRef)

		amount, err := strconv.Atoi(record.Amount)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, amount, 1)
		assert.LessOrEqual(t, amount, 100)

		assert.False(t, record.ScheduledFor.Before(testNow))
		assert.True(t, record.ScheduledFor.Before(testNow.Add(24*time.Hour)))

		assert.False(t, seen[record.IdentityID], "identity %s scheduled twice", record.IdentityID)
		seen[record.IdentityID] = true
		assert.Equal(t, entities.IdentityStatusReserved, mustIdentity(t, store, record.IdentityID).Status)
	}

	idle, err := store.CountIdentities(context.Background(), "bnb", entities.IdentityStatusIdle)
	require.NoError(t, err)
	assert.Equal(t, 2, idle)
}

func TestScheduleCycleTakesOldestIdleIdentitiesFirst(t *testing.T) {
	store := memory.NewStore(idleIdentities(4, "bnb"))
	scheduler := newScheduler(store)

	_, err := scheduler.Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "10",
		DailyTarget:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.IdentityStatusReserved, mustIdentity(t, store, "identity-01").Status)
	assert.Equal(t, entities.IdentityStatusReserved, mustIdentity(t, store, "identity-02").Status)
	assert.Equal(t, entities.IdentityStatusIdle, mustIdentity(t, store, "identity-03").Status)
}

func TestScheduleCycleReportsMissingSettings(t *testing.T) {
	cases := []commands.ScheduleCycleCommand{
		{Chain: "bnb", TokenRef: "", AmountCeiling: "100", DailyTarget: 5},
		{Chain: "bnb", TokenRef: testToken, AmountCeiling: "", DailyTarget: 5},
		{Chain: "bnb", TokenRef: testToken, AmountCeiling: "not-a-number", DailyTarget: 5},
		{Chain: "bnb", TokenRef: testToken, AmountCeiling: "0.5", DailyTarget: 5},
	}
	for i, cmd := range cases {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			store := memory.NewStore(idleIdentities(3, "bnb"))
			result, err := newScheduler(store).Run(context.Background(), cmd)
			require.NoError(t, err)
			assert.Equal(t, commands.ReasonMissingSettings, result.Reason)
			assert.Zero(t, result.ScheduledCount)

			idle, err := store.CountIdentities(context.Background(), "bnb", entities.IdentityStatusIdle)
			require.NoError(t, err)
			assert.Equal(t, 3, idle)
		})
	}
}

func TestScheduleCycleStopsWhenDailyQuotaIsUsed(t *testing.T) {
	store := memory.NewStore(idleIdentities(5, "bnb"))
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		pendingDisbursement("d-1", "other-1", testNow.Add(time.Hour)),
		pendingDisbursement("d-2", "other-2", testNow.Add(2*time.Hour)),
	}))

	result, err := newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ScheduledCount)

	result, err = newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   3,
	})
	require.NoError(t, err)
	assert.Zero(t, result.ScheduledCount)
	assert.Equal(t, "daily-exhausted", result.Reason)
}

func TestScheduleCycleStopsAtLifetimeTarget(t *testing.T) {
	store := memory.NewStore(idleIdentities(5, "bnb"))
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		pendingDisbursement("d-1", "other-1", testNow.Add(-72*time.Hour)),
		pendingDisbursement("d-2", "other-2", testNow.Add(-48*time.Hour)),
	}))

	result, err := newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:          "bnb",
		TokenRef:       testToken,
		AmountCeiling:  "100",
		DailyTarget:    10,
		LifetimeTarget: 2,
	})
	require.NoError(t, err)
	assert.Zero(t, result.ScheduledCount)
	assert.Equal(t, "lifetime-exhausted", result.Reason)
}

func TestScheduleCycleLifetimeRemainderCapsTheCycle(t *testing.T) {
	store := memory.NewStore(idleIdentities(5, "bnb"))
	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{
		pendingDisbursement("d-1", "other-1", testNow.Add(-72*time.Hour)),
	}))

	result, err := newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:          "bnb",
		TokenRef:       testToken,
		AmountCeiling:  "100",
		DailyTarget:    10,
		LifetimeTarget: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ScheduledCount)
}

func TestScheduleCycleWithEmptyPoolSchedulesNothing(t *testing.T) {
	store := memory.NewStore(nil)
	result, err := newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   10,
	})
	require.NoError(t, err)
	assert.Zero(t, result.ScheduledCount)
	assert.Empty(t, result.Reason)
}

func TestScheduleCycleIgnoresOtherChains(t *testing.T) {
	store := memory.NewStore(append(idleIdentities(2, "eth"), entities.Identity{
		ID:        "bnb-1",
		Chain:     "bnb",
		Address:   "0xbnb1",
		Status:    entities.IdentityStatusIdle,
		CreatedAt: testNow,
	}))
	result, err := newScheduler(store).Run(context.Background(), commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ScheduledCount)
	assert.Equal(t, entities.IdentityStatusReserved, mustIdentity(t, store, "bnb-1").Status)
}

func TestConcurrentScheduleCyclesNeverShareAnIdentity(t *testing.T) {
	store := memory.NewStore(idleIdentities(10, "bnb"))
	scheduler := newScheduler(store)
	cmd := commands.ScheduleCycleCommand{
		Chain:         "bnb",
		TokenRef:      testToken,
		AmountCeiling: "100",
		DailyTarget:   10,
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]commands.ScheduleCycleResult, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = scheduler.Run(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := range workers {
		require.NoError(t, errs[i])
		total += results[i].ScheduledCount
	}
	assert.Equal(t, 10, total)

	records, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 10)
	owners := map[string]int{}
	for _, record := range records {
		owners[record.IdentityID]++
	}
	for identityID, count := range owners {
		assert.Equal(t, 1, count, "identity %s has %d disbursements", identityID, count)
	}
}

func TestScheduleCycleRunWithSettingsReadsStoredSettings(t *testing.T) {
	store := memory.NewStore(idleIdentities(5, "bnb"))
	settings := settingsFor(store, testDefaults())
	daily := 2
	_, err := settings.Update(context.Background(), commands.UpdateSettingsCommand{DailyTarget: &daily})
	require.NoError(t, err)

	result, err := newScheduler(store).RunWithSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ScheduledCount)
}
