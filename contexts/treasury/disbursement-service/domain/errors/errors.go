package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSettings           = errors.New("missing settings")
	ErrMissingTreasuryCredential = errors.New("missing treasury credential")
	ErrInvalidSettings           = errors.New("invalid settings")
	ErrIdentityNotFound          = errors.New("identity not found")
	ErrIdentityAlreadyClaimed    = errors.New("identity already has a live disbursement")
	ErrIdentityAlreadySpent      = errors.New("identity already spent")
	ErrDisbursementNotFound      = errors.New("disbursement not found")
	ErrInvalidStateTransition    = errors.New("invalid disbursement state transition")
	ErrTransactionReverted       = errors.New("transaction reverted")
	ErrMissingLedgerReference    = errors.New("missing ledger reference")
	ErrRuntimeUnavailable        = errors.New("runtime unavailable")
)

// LedgerError wraps a submission or finality-query failure from the ledger client.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ledger %s failed", e.Op)
	}
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func NewLedgerError(op string, err error) error {
	return &LedgerError{Op: op, Err: err}
}

func IsLedgerError(err error) bool {
	var ledgerErr *LedgerError
	return errors.As(err, &ledgerErr)
}
