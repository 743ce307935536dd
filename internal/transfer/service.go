package transfer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/money"
)

// AccountChecker confirms that an account exists.
type AccountChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// Service records transfer requests. Moving funds is the posting engine's job.
type Service struct {
	repo     Repository
	accounts AccountChecker
	now      func() time.Time
}

// NewService builds a transfer service. accounts may be nil, in which case
// the store's foreign keys are the only existence check.
func NewService(repo Repository, accounts AccountChecker) *Service {
	return &Service{repo: repo, accounts: accounts, now: time.Now}
}

// CreateInput captures a transfer request.
type CreateInput struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Description   string
	ExternalRef   string
	InitiatedBy   uuid.UUID
}

// Create records a pending transfer. Nothing is persisted when validation
// fails. Checks run in order: same account, amount, currency.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, error) {
	if input.FromAccountID == input.ToAccountID {
		return Transfer{}, ErrSameAccount
	}
	if err := money.ValidateAmount(input.Amount); err != nil {
		return Transfer{}, err
	}
	currency, err := money.NormalizeCurrency(input.Currency)
	if err != nil {
		return Transfer{}, err
	}
	if s.accounts != nil {
		for _, id := range []uuid.UUID{input.FromAccountID, input.ToAccountID} {
			if err := s.accounts.Exists(ctx, id); err != nil {
				return Transfer{}, err
			}
		}
	}

	t := Transfer{
		ID:            uuid.New(),
		FromAccountID: input.FromAccountID,
		ToAccountID:   input.ToAccountID,
		Amount:        input.Amount,
		Currency:      currency,
		Status:        StatusPending,
		Description:   strings.TrimSpace(input.Description),
		ExternalRef:   strings.TrimSpace(input.ExternalRef),
		InitiatedBy:   input.InitiatedBy,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Transfer{}, err
	}
	return t, nil
}

// Get returns a transfer by identifier.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return s.repo.Get(ctx, id)
}

// ListByAccount returns transfers touching the account.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Transfer, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Parties returns the source and destination of a transfer. The transfer
// access guard uses it to check ownership.
func (s *Service) Parties(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []uuid.UUID{t.FromAccountID, t.ToAccountID}, nil
}
