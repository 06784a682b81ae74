package entities

import "time"

type DisbursementStatus string

const (
	DisbursementStatusPending   DisbursementStatus = "PENDING"
	DisbursementStatusSubmitted DisbursementStatus = "SUBMITTED"
	DisbursementStatusConfirmed DisbursementStatus = "CONFIRMED"
	DisbursementStatusFailed    DisbursementStatus = "FAILED"
)

func (s DisbursementStatus) IsTerminal() bool {
	return s == DisbursementStatusConfirmed || s == DisbursementStatusFailed
}

func (s DisbursementStatus) IsValid() bool {
	switch s {
	case DisbursementStatusPending,
		DisbursementStatusSubmitted,
		DisbursementStatusConfirmed,
		DisbursementStatusFailed:
		return true
	default:
		return false
	}
}

// Disbursement is one scheduled transfer of TokenRef to one identity.
// Amount is a whole-token decimal string; scaling to base units happens in the ledger adapter.
type Disbursement struct {
	ID            string
	IdentityID    string
	TokenRef      string
	Amount        string
	Status        DisbursementStatus
	ScheduledFor  time.Time
	LedgerTxRef   string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusUpdate is the single-row write applied by the settlement worker.
// ExpectedStatus guards the transition so terminal records are never rewritten.
type StatusUpdate struct {
	DisbursementID string
	ExpectedStatus DisbursementStatus
	Status         DisbursementStatus
	LedgerTxRef    string
	FailureReason  string
	UpdatedAt      time.Time
}
