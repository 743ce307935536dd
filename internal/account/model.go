package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies what an account is used for.
type Kind string

const (
	KindWallet  Kind = "wallet"
	KindSavings Kind = "savings"
	KindEscrow  Kind = "escrow"
)

// Valid reports whether k is one of the known account kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindWallet, KindSavings, KindEscrow:
		return true
	}
	return false
}

// Status is the operational state of an account. Transitions are driven outside the core.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// TreasuryName is the display name given to treasury accounts.
const TreasuryName = "treasury"

// TreasuryOwnerID is the reserved owner of the treasury accounts that act as
// counterparty for money entering or leaving through external rails.
var TreasuryOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var (
	// ErrNotFound indicates the referenced account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateAccount indicates an account with the same owner, kind,
	// currency and name already exists. Callers usually treat it as "already provisioned".
	ErrDuplicateAccount = errors.New("duplicate account")

	// ErrInvalidKind indicates an unknown account kind.
	ErrInvalidKind = errors.New("invalid account kind")
)

// Account is a monetary account owned by an external identity.
type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Kind      Kind
	Currency  string
	Status    Status
	Name      string
	CreatedAt time.Time
}

// Balance is the ledger-derived balance of an account at a point in time.
type Balance struct {
	AccountID uuid.UUID
	Currency  string
	Amount    decimal.Decimal
	AsOf      time.Time
}
