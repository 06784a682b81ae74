package commands_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/adapters/memory"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

const testToken = "0x55d398326f99059fF775485246999027B3197955"

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeLedger struct {
	mu        sync.Mutex
	submitErr map[string]error
	finality  map[string]*ports.Finality
	finalErr  map[string]error
	submitted []string
	next      int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		submitErr: map[string]error{},
		finality:  map[string]*ports.Finality{},
		finalErr:  map[string]error{},
	}
}

// SubmitTransfer hands out tx refs 0xref1, 0xref2, ... in call order.
func (l *fakeLedger) SubmitTransfer(_ context.Context, _ string, _ string, toAddress string, _ string, _ int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, toAddress)
	if err := l.submitErr[toAddress]; err != nil {
		return "", err
	}
	l.next++
	return fmt.Sprintf("0xref%d", l.next), nil
}

func (l *fakeLedger) GetFinality(_ context.Context, txRef string) (*ports.Finality, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.finalErr[txRef]; err != nil {
		return nil, err
	}
	return l.finality[txRef], nil
}

func (l *fakeLedger) submissions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.submitted...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int
}

func (n *recordingNotifier) OnLifetimeTargetReached(confirmed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, confirmed)
}

type fakeRuntime struct {
	running bool
	starts  int
	stops   int
}

func (r *fakeRuntime) Start() {
	r.starts++
	r.running = true
}

func (r *fakeRuntime) Stop() {
	r.stops++
	r.running = false
}

func (r *fakeRuntime) Running() bool { return r.running }

type sequentialKeys struct{ n int }

func (k *sequentialKeys) Generate(string) (ports.KeyPair, error) {
	k.n++
	return ports.KeyPair{
		Address: fmt.Sprintf("0x%040d", k.n),
		Secret:  fmt.Sprintf("secret-%d", k.n),
	}, nil
}

type failingKeys struct{}

func (failingKeys) Generate(string) (ports.KeyPair, error) {
	return ports.KeyPair{}, errors.New("entropy unavailable")
}

type recordingExporter struct {
	batches [][]entities.Identity
	err     error
}

func (e *recordingExporter) Export(_ context.Context, identities []entities.Identity) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.batches = append(e.batches, identities)
	return fmt.Sprintf("exports/batch-%d.csv", len(e.batches)), nil
}

func idleIdentities(count int, chain string) []entities.Identity {
	items := make([]entities.Identity, 0, count)
	for i := 1; i <= count; i++ {
		items = append(items, entities.Identity{
			ID:        fmt.Sprintf("identity-%02d", i),
			Chain:     chain,
			Address:   fmt.Sprintf("0xaddr%02d", i),
			Secret:    fmt.Sprintf("secret-%02d", i),
			Status:    entities.IdentityStatusIdle,
			CreatedAt: testNow.Add(time.Duration(i) * time.Second),
		})
	}
	return items
}

func reservedIdentity(id string, address string) entities.Identity {
	reservedAt := testNow.Add(-time.Hour)
	return entities.Identity{
		ID:         id,
		Chain:      "bnb",
		Address:    address,
		Status:     entities.IdentityStatusReserved,
		ReservedAt: &reservedAt,
		CreatedAt:  testNow.Add(-48 * time.Hour),
	}
}

func pendingDisbursement(id string, identityID string, scheduledFor time.Time) entities.Disbursement {
	return entities.Disbursement{
		ID:           id,
		IdentityID:   identityID,
		TokenRef:     testToken,
		Amount:       "12",
		Status:       entities.DisbursementStatusPending,
		ScheduledFor: scheduledFor,
		CreatedAt:    testNow.Add(-2 * time.Hour),
		UpdatedAt:    testNow.Add(-2 * time.Hour),
	}
}

func testDefaults() commands.RuntimeDefaults {
	return commands.RuntimeDefaults{
		Settings: entities.Settings{
			TokenRef:           testToken,
			AmountCeiling:      "100",
			TreasuryCredential: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
			DailyTarget:        60,
		},
		Chain:            "bnb",
		Decimals:         18,
		MinConfirmations: 3,
		StopOnLifetime:   true,
	}
}

func settingsFor(store *memory.Store, defaults commands.RuntimeDefaults) commands.SettingsUseCase {
	return commands.SettingsUseCase{
		Repository: store,
		Defaults:   defaults,
		Clock:      fixedClock{now: testNow},
	}
}

func mustDisbursement(t *testing.T, store *memory.Store, id string) entities.Disbursement {
	t.Helper()
	records, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	for _, record := range records {
		if record.ID == id {
			return record
		}
	}
	require.FailNow(t, "disbursement not found", id)
	return entities.Disbursement{}
}

func mustIdentity(t *testing.T, store *memory.Store, id string) entities.Identity {
	t.Helper()
	identity, err := store.GetIdentity(context.Background(), id)
	require.NoError(t, err)
	return identity
}
