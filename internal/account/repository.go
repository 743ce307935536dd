package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/congo-pay/merchant_ledger/internal/infra"
)

// Repository persists account metadata.
type Repository interface {
	Create(ctx context.Context, acc Account) error
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	FindByClass(ctx context.Context, ownerID uuid.UUID, kind Kind, currency, name string) (Account, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error)
}

// PostgresRepository stores accounts in PostgreSQL. It runs against a pool or
// inside a transaction opened by the caller.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectAccountColumns = `id, owner_id, kind, currency, status, name, created_at`

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, owner_id, kind, currency, status, name, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		acc.ID, acc.OwnerID, string(acc.Kind), acc.Currency, string(acc.Status), acc.Name, acc.CreatedAt.UTC())
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Get fetches an account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectAccountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByClass fetches the account identified by its unique classification tuple.
func (r *PostgresRepository) FindByClass(ctx context.Context, ownerID uuid.UUID, kind Kind, currency, name string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectAccountColumns+` FROM accounts
        WHERE owner_id = $1 AND kind = $2 AND currency = $3 AND name = $4`,
		ownerID, string(kind), currency, name)
	return scanAccount(row)
}

// ListByOwner returns all accounts held by ownerID, oldest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectAccountColumns+` FROM accounts
        WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc       Account
		kind      string
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&acc.ID, &acc.OwnerID, &kind, &acc.Currency, &status, &acc.Name, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	acc.Kind = Kind(kind)
	acc.Status = Status(status)
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}
