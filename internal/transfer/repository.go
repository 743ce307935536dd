package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/infra"
)

//go:generate mockgen -source=repository.go -destination=repository_mock.go -package=transfer
type Repository interface {
	Create(ctx context.Context, t Transfer) error
	Get(ctx context.Context, id uuid.UUID) (Transfer, error)
	// GetForUpdate reads the transfer and holds an exclusive row lock until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error)
	Update(ctx context.Context, t Transfer) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Transfer, error)
}

// PostgresRepository stores transfers in PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed transfer repository on a pool or transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectTransferColumns = `id, from_account_id, to_account_id, amount::text, currency, status,
        description, external_ref, initiated_by, created_at, posted_at, failure_reason, reversed_at`

// Create inserts a pending transfer.
func (r *PostgresRepository) Create(ctx context.Context, t Transfer) error {
	_, err := r.db.Exec(ctx, `INSERT INTO transfers
        (id, from_account_id, to_account_id, amount, currency, status, description, external_ref, initiated_by, created_at)
        VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.FromAccountID, t.ToAccountID, t.Amount.String(), t.Currency, string(t.Status),
		t.Description, t.ExternalRef, t.InitiatedBy, t.CreatedAt.UTC())
	if err != nil {
		if infra.IsForeignKeyViolation(err) {
			return account.ErrNotFound
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// Get fetches a transfer by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return scanTransfer(r.db.QueryRow(ctx, `SELECT `+selectTransferColumns+` FROM transfers WHERE id = $1`, id))
}

// GetForUpdate fetches a transfer with SELECT ... FOR UPDATE. It only serializes
// when r was built on a transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return scanTransfer(r.db.QueryRow(ctx, `SELECT `+selectTransferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id))
}

// Update persists the lifecycle fields of a transfer.
func (r *PostgresRepository) Update(ctx context.Context, t Transfer) error {
	var reason *string
	if t.FailureReason != "" {
		reason = &t.FailureReason
	}
	cmd, err := r.db.Exec(ctx, `UPDATE transfers
        SET status = $2, posted_at = $3, failure_reason = $4, reversed_at = $5
        WHERE id = $1`, t.ID, string(t.Status), t.PostedAt, reason, t.ReversedAt)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByAccount returns transfers where the account is source or destination, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Transfer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectTransferColumns+` FROM transfers
        WHERE from_account_id = $1 OR to_account_id = $1
        ORDER BY created_at DESC, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var (
		t         Transfer
		amount    string
		status    string
		reason    *string
		createdAt time.Time
	)
	err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &t.Currency, &status,
		&t.Description, &t.ExternalRef, &t.InitiatedBy, &createdAt, &t.PostedAt, &reason, &t.ReversedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, fmt.Errorf("scan transfer: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transfer{}, err
	}
	t.Status = Status(status)
	t.CreatedAt = createdAt.UTC()
	if reason != nil {
		t.FailureReason = *reason
	}
	return t, nil
}
