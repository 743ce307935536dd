package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/money"
)

// Status is a transfer's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusReversed  Status = "reversed"
)

// transitions lists the legal moves out of each state. Statuses missing from
// the map are terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusPosted, StatusFailed, StatusCancelled},
	StatusPosted:  {StatusReversed},
}

// CanTransition reports whether a transfer may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPosted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates the referenced transfer does not exist.
	ErrNotFound = errors.New("transfer not found")

	// ErrSameAccount indicates source and destination are the same account.
	ErrSameAccount = errors.New("source and destination accounts are identical")

	// ErrInvalidState indicates the transfer's status does not allow the requested transition.
	ErrInvalidState = errors.New("invalid transfer state")

	ErrInvalidAmount   = money.ErrInvalidAmount
	ErrInvalidCurrency = money.ErrInvalidCurrency
)

// Transfer is a request to move funds between two accounts. Its ledger
// entries exist only once it has been posted.
type Transfer struct {
	ID            uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	Description   string
	ExternalRef   string
	InitiatedBy   uuid.UUID
	CreatedAt     time.Time
	PostedAt      *time.Time
	FailureReason string
	ReversedAt    *time.Time
}

// Transition returns a copy of t moved to status `to`, stamping the timestamp
// or reason that belongs to the new state.
func (t Transfer) Transition(to Status, at time.Time, reason string) (Transfer, error) {
	if !CanTransition(t.Status, to) {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.Status, to)
	}
	at = at.UTC()
	switch to {
	case StatusPosted:
		t.PostedAt = &at
	case StatusFailed:
		t.FailureReason = reason
	case StatusReversed:
		t.ReversedAt = &at
	}
	t.Status = to
	return t, nil
}
