package workers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/adapters/memory"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/application/workers"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenSettings struct{}

func (brokenSettings) GetSettings(context.Context) (entities.Settings, bool, error) {
	return entities.Settings{}, false, errors.New("settings table unavailable")
}

func (brokenSettings) SaveSettings(context.Context, entities.Settings) error {
	return errors.New("settings table unavailable")
}

type staticKeys struct{}

func (staticKeys) Generate(string) (ports.KeyPair, error) {
	return ports.KeyPair{Address: "0xpool", Secret: "0xsecret"}, nil
}

func defaults() commands.RuntimeDefaults {
	return commands.RuntimeDefaults{
		Settings: entities.Settings{TokenRef: "0xtoken", AmountCeiling: "10", DailyTarget: 2},
		Chain:    "bnb",
	}
}

func TestSchedulerJobPropagatesSettingsFailure(t *testing.T) {
	store := memory.NewStore(nil)
	job := workers.SchedulerJob{
		Scheduler: commands.ScheduleCycleUseCase{
			Identities:    store,
			Disbursements: store,
			Settings:      commands.SettingsUseCase{Repository: brokenSettings{}, Defaults: defaults()},
			IDGenerator:   store,
		},
	}
	require.Error(t, job.RunOnce(context.Background()))
}

func TestSchedulerJobRunsCycle(t *testing.T) {
	store := memory.NewStore([]entities.Identity{
		{ID: "i-1", Chain: "bnb", Address: "0x1", Status: entities.IdentityStatusIdle, CreatedAt: time.Now().UTC()},
	})
	job := workers.SchedulerJob{
		Scheduler: commands.ScheduleCycleUseCase{
			Identities:    store,
			Disbursements: store,
			Settings:      commands.SettingsUseCase{Repository: store, Defaults: defaults()},
			IDGenerator:   store,
		},
	}
	require.NoError(t, job.RunOnce(context.Background()))

	count, err := store.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSettlementJobPropagatesSettingsFailureOnlyWhenWorkIsDue(t *testing.T) {
	store := memory.NewStore(nil)
	job := workers.SettlementJob{
		Settlement: commands.SettlementUseCase{
			Identities:    store,
			Disbursements: store,
			Settings:      commands.SettingsUseCase{Repository: brokenSettings{}, Defaults: defaults()},
		},
	}
	require.NoError(t, job.RunOnce(context.Background()))

	require.NoError(t, store.InsertDisbursements(context.Background(), []entities.Disbursement{{
		ID:           "d-1",
		IdentityID:   "i-1",
		TokenRef:     "0xtoken",
		Amount:       "3",
		Status:       entities.DisbursementStatusPending,
		ScheduledFor: time.Now().UTC().Add(-time.Minute),
	}}))
	require.Error(t, job.RunOnce(context.Background()))
}

func TestPoolJobReplenishes(t *testing.T) {
	store := memory.NewStore(nil)
	job := workers.PoolJob{
		Pool: commands.PoolReplenishUseCase{
			Identities:  store,
			Pool:        store,
			Keys:        staticKeys{},
			IDGenerator: store,
		},
		Chain:  "bnb",
		Target: 3,
	}
	require.NoError(t, job.RunOnce(context.Background()))

	idle, err := store.CountIdentities(context.Background(), "bnb", entities.IdentityStatusIdle)
	require.NoError(t, err)
	assert.Equal(t, 3, idle)
}
