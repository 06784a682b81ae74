package ledger

import (
	"context"
	"errors"

	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

var ErrLedgerNotConfigured = errors.New("ledger rpc url is not configured")

// Offline stands in for the chain when no RPC endpoint is configured. Every
// call returns a ledger error, so settlement records the failure on the
// disbursement instead of crashing the sweep.
type Offline struct{}

func (Offline) SubmitTransfer(context.Context, string, string, string, string, int) (string, error) {
	return "", domainerrors.NewLedgerError(opSubmit, ErrLedgerNotConfigured)
}

func (Offline) GetFinality(context.Context, string) (*ports.Finality, error) {
	return nil, domainerrors.NewLedgerError(opFinality, ErrLedgerNotConfigured)
}

var _ ports.Ledger = Offline{}
