package posting

import (
	"context"

	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// Tx is the unit of work a transition runs in. Its writes become visible
// together on commit or not at all.
type Tx interface {
	// LockTransfer reads the transfer and holds it exclusively until the unit of work ends.
	LockTransfer(ctx context.Context, id uuid.UUID) (transfer.Transfer, error)
	Account(ctx context.Context, id uuid.UUID) (account.Account, error)
	Append(ctx context.Context, entries ...ledger.Entry) error
	UpdateTransfer(ctx context.Context, t transfer.Transfer) error
}

// Store opens units of work. fn returning an error rolls back every write it made.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
