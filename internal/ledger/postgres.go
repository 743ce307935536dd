package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/infra"
)

// PostgresStore persists ledger entries in PostgreSQL. Balances are always
// summed from ledger_entries; there is no cached balance column.
type PostgresStore struct {
	db infra.DBTX
}

// NewPostgresStore constructs a Postgres-backed ledger store on a pool or transaction.
func NewPostgresStore(db infra.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts all entries in one statement so a partial write is impossible
// even outside an explicit transaction.
func (s *PostgresStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := Validate(e); err != nil {
			return err
		}
	}

	var (
		sb   strings.Builder
		args = make([]any, 0, len(entries)*7)
	)
	sb.WriteString(`INSERT INTO ledger_entries (id, account_id, transfer_id, kind, amount, currency, created_at) VALUES `)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d::text::numeric, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, e.ID, e.AccountID, e.TransferID, string(e.Kind), e.Amount.String(), e.Currency, e.CreatedAt.UTC())
	}

	if _, err := s.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// Balance returns sum(credits) - sum(debits) for the account; zero when it has no entries.
func (s *PostgresStore) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount ELSE -amount END), 0)::text
        FROM ledger_entries
        WHERE account_id = $1`
	var raw string
	if err := s.db.QueryRow(ctx, query, accountID).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}
	return decimal.NewFromString(raw)
}

// Entries lists the account's entries in posting order.
func (s *PostgresStore) Entries(ctx context.Context, accountID uuid.UUID) ([]Entry, error) {
	return s.list(ctx, `WHERE account_id = $1`, accountID)
}

// EntriesForTransfer lists the entries a transfer produced, including reversals.
func (s *PostgresStore) EntriesForTransfer(ctx context.Context, transferID uuid.UUID) ([]Entry, error) {
	return s.list(ctx, `WHERE transfer_id = $1`, transferID)
}

// Totals returns the signed sum of all entries per currency.
func (s *PostgresStore) Totals(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.db.Query(ctx, `
        SELECT currency, SUM(CASE WHEN kind = 'credit' THEN amount ELSE -amount END)::text
        FROM ledger_entries
        GROUP BY currency`)
	if err != nil {
		return nil, fmt.Errorf("sum ledger totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency, raw string
		if err := rows.Scan(&currency, &raw); err != nil {
			return nil, err
		}
		total, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		totals[currency] = total
	}
	return totals, rows.Err()
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, account_id, transfer_id, kind, amount::text, currency, created_at
        FROM ledger_entries `+where+`
        ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			kind      string
			amount    string
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TransferID, &kind, &amount, &e.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		e.CreatedAt = createdAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
