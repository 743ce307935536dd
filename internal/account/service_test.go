package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/merchant_ledger/internal/ledger"
)

func newTestService() (*Service, ledger.Store) {
	led := ledger.NewInMemory()
	return NewService(NewMemoryRepository(), led), led
}

func TestServiceCreateAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	acc, err := svc.Create(ctx, CreateInput{OwnerID: owner, Kind: KindWallet, Currency: "usd", Name: "Main"})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, acc.Status)
	assert.Equal(t, "USD", acc.Currency)

	fetched, err := svc.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc, fetched)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateDuplicate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	input := CreateInput{OwnerID: uuid.New(), Kind: KindSavings, Currency: "EUR", Name: "Rainy day"}

	_, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input)
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	input.Name = "Holiday"
	_, err = svc.Create(ctx, input)
	assert.NoError(t, err, "a different name is a different classification")
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{OwnerID: uuid.New(), Kind: KindWallet, Currency: "US"})
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = svc.Create(ctx, CreateInput{OwnerID: uuid.New(), Kind: "brokerage", Currency: "USD"})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestServiceProvisionIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	input := CreateInput{OwnerID: uuid.New(), Kind: KindWallet, Currency: "USD", Name: "Main"}

	first, err := svc.Provision(ctx, input)
	require.NoError(t, err)
	second, err := svc.Provision(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestServiceEnsureTreasury(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	usd, err := svc.EnsureTreasury(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, TreasuryOwnerID, usd.OwnerID)
	assert.Equal(t, KindEscrow, usd.Kind)

	again, err := svc.EnsureTreasury(ctx, "usd")
	require.NoError(t, err)
	assert.Equal(t, usd.ID, again.ID)

	eur, err := svc.EnsureTreasury(ctx, "EUR")
	require.NoError(t, err)
	assert.NotEqual(t, usd.ID, eur.ID)
}

func TestServiceBalanceIsDerivedFromLedger(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()

	acc, err := svc.Create(ctx, CreateInput{OwnerID: uuid.New(), Kind: KindWallet, Currency: "USD"})
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, balance.Amount.IsZero())

	require.NoError(t, led.Append(ctx,
		ledger.NewEntry(acc.ID, nil, ledger.Credit, decimal.RequireFromString("40.00"), "USD", time.Now()),
		ledger.NewEntry(acc.ID, nil, ledger.Debit, decimal.RequireFromString("15.50"), "USD", time.Now()),
	))

	balance, err = svc.Balance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "24.50", balance.Amount.StringFixed(2))
	assert.Equal(t, "USD", balance.Currency)

	_, err = svc.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListByOwner(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	for _, name := range []string{"a", "b"} {
		_, err := svc.Create(ctx, CreateInput{OwnerID: owner, Kind: KindWallet, Currency: "USD", Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateInput{OwnerID: uuid.New(), Kind: KindWallet, Currency: "USD"})
	require.NoError(t, err)

	accounts, err := svc.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}
