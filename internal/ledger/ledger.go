package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/money"
)

// ErrInvalidAmount occurs when an entry amount is not strictly positive.
var ErrInvalidAmount = money.ErrInvalidAmount

// EntryKind is the side of a double-entry posting.
type EntryKind string

const (
	Debit  EntryKind = "debit"
	Credit EntryKind = "credit"
)

// Entry is one immutable half of a double-entry posting. Corrections are
// recorded as new offsetting entries, never as edits.
type Entry struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	TransferID *uuid.UUID
	Kind       EntryKind
	Amount     decimal.Decimal
	Currency   string
	CreatedAt  time.Time
}

// Signed returns the amount as it contributes to a balance: credits add, debits subtract.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// NewEntry builds an entry with a fresh identifier stamped at now.
func NewEntry(accountID uuid.UUID, transferID *uuid.UUID, kind EntryKind, amount decimal.Decimal, currency string, now time.Time) Entry {
	return Entry{
		ID:         uuid.New(),
		AccountID:  accountID,
		TransferID: transferID,
		Kind:       kind,
		Amount:     amount,
		Currency:   currency,
		CreatedAt:  now.UTC(),
	}
}

// Store is the append-only source of truth for balances. Append is only
// reached from the posting engine's unit of work.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	Entries(ctx context.Context, accountID uuid.UUID) ([]Entry, error)
	EntriesForTransfer(ctx context.Context, transferID uuid.UUID) ([]Entry, error)
	Totals(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Validate rejects entries that would break the ledger's invariants.
func Validate(e Entry) error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Kind != Debit && e.Kind != Credit {
		return errors.New("invalid entry kind")
	}
	if _, err := money.NormalizeCurrency(e.Currency); err != nil {
		return err
	}
	return nil
}

// Imbalanced returns the currencies whose signed total is not zero.
func Imbalanced(totals map[string]decimal.Decimal) []string {
	var out []string
	for currency, total := range totals {
		if !total.IsZero() {
			out = append(out, currency)
		}
	}
	return out
}
