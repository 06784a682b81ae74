package entities

import "time"

type IdentityStatus string

const (
	IdentityStatusIdle     IdentityStatus = "IDLE"
	IdentityStatusReserved IdentityStatus = "RESERVED"
	IdentityStatusSpent    IdentityStatus = "SPENT"
)

// Identity is a single-use recipient address drawn from the pool.
// Status only moves forward: IDLE -> RESERVED -> SPENT.
type Identity struct {
	ID         string
	Chain      string
	Address    string
	Secret     string
	Status     IdentityStatus
	ReservedAt *time.Time
	SpentAt    *time.Time
	CreatedAt  time.Time
}

func (i Identity) IsIdle() bool {
	return i.Status == IdentityStatusIdle
}
