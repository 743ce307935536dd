package posting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// PostgresStore runs each unit of work in a read-committed pgx transaction.
// Serialization comes from the explicit transfer row lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a Store on a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WithinTx begins a transaction, runs fn and commits. Any error rolls back.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{
		transfers: transfer.NewPostgresRepository(tx),
		accounts:  account.NewPostgresRepository(tx),
		ledger:    ledger.NewPostgresStore(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	transfers *transfer.PostgresRepository
	accounts  *account.PostgresRepository
	ledger    *ledger.PostgresStore
}

func (t *pgTx) LockTransfer(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	return t.transfers.GetForUpdate(ctx, id)
}

func (t *pgTx) Account(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return t.accounts.Get(ctx, id)
}

func (t *pgTx) Append(ctx context.Context, entries ...ledger.Entry) error {
	return t.ledger.Append(ctx, entries...)
}

func (t *pgTx) UpdateTransfer(ctx context.Context, tr transfer.Transfer) error {
	return t.transfers.Update(ctx, tr)
}
