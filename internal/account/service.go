package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/money"
)

// ErrInvalidCurrency is returned for currency codes that are not three characters.
var ErrInvalidCurrency = money.ErrInvalidCurrency

// Service exposes account registry operations and the ledger-derived balance.
type Service struct {
	repo   Repository
	ledger ledger.Store
	now    func() time.Time
}

// NewService builds an account service instance.
func NewService(repo Repository, ledger ledger.Store) *Service {
	return &Service{repo: repo, ledger: ledger, now: time.Now}
}

// CreateInput captures data required to create an account.
type CreateInput struct {
	OwnerID  uuid.UUID
	Kind     Kind
	Currency string
	Name     string
}

// Create provisions an active account. It fails with ErrDuplicateAccount when
// the owner already holds an account with the same kind, currency and name.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	acc, err := s.build(input)
	if err != nil {
		return Account{}, err
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Provision creates the account or returns the existing one with the same classification.
func (s *Service) Provision(ctx context.Context, input CreateInput) (Account, error) {
	acc, err := s.Create(ctx, input)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrDuplicateAccount) {
		return Account{}, err
	}
	want, err := s.build(input)
	if err != nil {
		return Account{}, err
	}
	return s.repo.FindByClass(ctx, want.OwnerID, want.Kind, want.Currency, want.Name)
}

// EnsureTreasury provisions the treasury account for currency. It is ordinary
// account data owned by TreasuryOwnerID.
func (s *Service) EnsureTreasury(ctx context.Context, currency string) (Account, error) {
	return s.Provision(ctx, CreateInput{
		OwnerID:  TreasuryOwnerID,
		Kind:     KindEscrow,
		Currency: currency,
		Name:     TreasuryName,
	})
}

// Get retrieves account metadata.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Exists returns ErrNotFound when the account is unknown.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.Get(ctx, id)
	return err
}

// OwnerOf returns the identity that owns the account.
func (s *Service) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return acc.OwnerID, nil
}

// ListByOwner returns the owner's accounts.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Balance returns the balance recomputed from the ledger.
func (s *Service) Balance(ctx context.Context, id uuid.UUID) (Balance, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, acc.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: acc.ID, Currency: acc.Currency, Amount: amount, AsOf: s.now().UTC()}, nil
}

// Entries returns the account's audit trail.
func (s *Service) Entries(ctx context.Context, id uuid.UUID) ([]ledger.Entry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Entries(ctx, id)
}

func (s *Service) build(input CreateInput) (Account, error) {
	currency, err := money.NormalizeCurrency(input.Currency)
	if err != nil {
		return Account{}, err
	}
	kind := input.Kind
	if kind == "" {
		kind = KindWallet
	}
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = string(kind)
	}
	return Account{
		ID:        uuid.New(),
		OwnerID:   input.OwnerID,
		Kind:      kind,
		Currency:  currency,
		Status:    StatusActive,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}, nil
}
