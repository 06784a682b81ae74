package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/google/uuid"
)

// Store keeps identities, disbursements and settings in process memory. Every
// method runs under one lock, so conditional updates are atomic.
type Store struct {
	mu sync.RWMutex

	identities    map[string]entities.Identity
	disbursements map[string]entities.Disbursement
	settings      *entities.Settings
}

func NewStore(seed []entities.Identity) *Store {
	identities := make(map[string]entities.Identity, len(seed))
	for _, identity := range seed {
		identities[identity.ID] = identity
	}
	return &Store{
		identities:    identities,
		disbursements: make(map[string]entities.Disbursement),
	}
}

func (s *Store) FindIdle(_ context.Context, chain string, limit int) ([]entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain = strings.TrimSpace(chain)
	items := make([]entities.Identity, 0)
	for _, identity := range s.identities {
		if identity.Status != entities.IdentityStatusIdle {
			continue
		}
		if chain != "" && identity.Chain != chain {
			continue
		}
		items = append(items, identity)
	}
	sortIdentities(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Reserve(_ context.Context, identityIDs []string, reservedAt time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved := make([]string, 0, len(identityIDs))
	at := reservedAt.UTC()
	for _, id := range identityIDs {
		identity, ok := s.identities[id]
		if !ok || identity.Status != entities.IdentityStatusIdle {
			continue
		}
		identity.Status = entities.IdentityStatusReserved
		identity.ReservedAt = &at
		s.identities[id] = identity
		reserved = append(reserved, id)
	}
	return reserved, nil
}

func (s *Store) MarkSpent(_ context.Context, identityID string, spentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return domainerrors.ErrIdentityNotFound
	}
	if identity.Status == entities.IdentityStatusSpent {
		return nil
	}
	at := spentAt.UTC()
	identity.Status = entities.IdentityStatusSpent
	identity.SpentAt = &at
	s.identities[identityID] = identity
	return nil
}

func (s *Store) GetIdentity(_ context.Context, identityID string) (entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return entities.Identity{}, domainerrors.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *Store) CountIdentities(_ context.Context, chain string, status entities.IdentityStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain = strings.TrimSpace(chain)
	count := 0
	for _, identity := range s.identities {
		if chain != "" && identity.Chain != chain {
			continue
		}
		if status != "" && identity.Status != status {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) InsertIdentities(_ context.Context, identities []entities.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, identity := range identities {
		s.identities[identity.ID] = identity
	}
	return nil
}

func (s *Store) ListIdentities(_ context.Context) ([]entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		items = append(items, identity)
	}
	sortIdentities(items)
	return items, nil
}

func (s *Store) CountScheduledBetween(_ context.Context, start time.Time, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.disbursements {
		if !record.ScheduledFor.Before(start) && record.ScheduledFor.Before(end) {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountAll(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.disbursements), nil
}

// InsertDisbursements is all-or-nothing and rejects a record whose identity
// already has a non-FAILED disbursement.
func (s *Store) InsertDisbursements(_ context.Context, records []entities.Disbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]struct{}, len(s.disbursements))
	for _, existing := range s.disbursements {
		if existing.Status != entities.DisbursementStatusFailed {
			live[existing.IdentityID] = struct{}{}
		}
	}
	for _, record := range records {
		if _, exists := live[record.IdentityID]; exists {
			return domainerrors.ErrIdentityAlreadyClaimed
		}
		live[record.IdentityID] = struct{}{}
	}
	for _, record := range records {
		s.disbursements[record.ID] = record
	}
	return nil
}

func (s *Store) ListPendingDue(_ context.Context, scheduledBefore time.Time, limit int) ([]entities.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Disbursement, 0)
	for _, record := range s.disbursements {
		if record.Status == entities.DisbursementStatusPending && !record.ScheduledFor.After(scheduledBefore) {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ScheduledFor.Equal(items[j].ScheduledFor) {
			return items[i].ID < items[j].ID
		}
		return items[i].ScheduledFor.Before(items[j].ScheduledFor)
	})
	return truncate(items, limit), nil
}

func (s *Store) ListSubmitted(_ context.Context, limit int) ([]entities.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Disbursement, 0)
	for _, record := range s.disbursements {
		if record.Status == entities.DisbursementStatusSubmitted {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.Before(items[j].UpdatedAt)
	})
	return truncate(items, limit), nil
}

func (s *Store) UpdateStatus(_ context.Context, update entities.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.disbursements[update.DisbursementID]
	if !ok {
		return domainerrors.ErrDisbursementNotFound
	}
	if record.Status != update.ExpectedStatus || !services.CanTransition(record.Status, update.Status) {
		return domainerrors.ErrInvalidStateTransition
	}
	record.Status = update.Status
	if update.LedgerTxRef != "" {
		record.LedgerTxRef = update.LedgerTxRef
	}
	if update.FailureReason != "" {
		record.FailureReason = update.FailureReason
	}
	record.UpdatedAt = update.UpdatedAt.UTC()
	s.disbursements[record.ID] = record
	return nil
}

func (s *Store) CountByStatus(_ context.Context, status entities.DisbursementStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.disbursements {
		if record.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *Store) NextPending(_ context.Context) (*entities.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *entities.Disbursement
	for _, record := range s.disbursements {
		if record.Status != entities.DisbursementStatusPending {
			continue
		}
		if next == nil || record.ScheduledFor.Before(next.ScheduledFor) {
			candidate := record
			next = &candidate
		}
	}
	return next, nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]entities.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Disbursement, 0, len(s.disbursements))
	for _, record := range s.disbursements {
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ScheduledFor.After(items[j].ScheduledFor)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return truncate(items, limit), nil
}

func (s *Store) PurgeAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identities = make(map[string]entities.Identity)
	s.disbursements = make(map[string]entities.Disbursement)
	return nil
}

func (s *Store) GetSettings(_ context.Context) (entities.Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return entities.Settings{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *Store) SaveSettings(_ context.Context, settings entities.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := settings
	s.settings = &stored
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortIdentities(items []entities.Identity) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func truncate(items []entities.Disbursement, limit int) []entities.Disbursement {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var _ ports.IdentityStore = (*Store)(nil)
var _ ports.PoolRepository = (*Store)(nil)
var _ ports.DisbursementStore = (*Store)(nil)
var _ ports.Purger = (*Store)(nil)
var _ ports.SettingsRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
