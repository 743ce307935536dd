package posting_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/authz"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/notification"
	"github.com/congo-pay/merchant_ledger/internal/posting"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

type fixture struct {
	accounts  *account.Service
	transfers *transfer.Service
	ledger    ledger.Store
	store     *posting.MemoryStore
}

func newFixture() *fixture {
	accRepo := account.NewMemoryRepository()
	store := posting.NewMemoryStore(transfer.NewMemoryRepository(), accRepo, ledger.NewInMemory())
	return &fixture{
		accounts:  account.NewService(accRepo, store.Ledger()),
		transfers: transfer.NewService(store.Transfers(), nil),
		ledger:    store.Ledger(),
		store:     store,
	}
}

func (f *fixture) account(t *testing.T, currency string) account.Account {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), account.CreateInput{OwnerID: uuid.New(), Currency: currency})
	require.NoError(t, err)
	return acc
}

func (f *fixture) transfer(t *testing.T, from, to uuid.UUID, amount, currency string) transfer.Transfer {
	t.Helper()
	tr, err := f.transfers.Create(context.Background(), transfer.CreateInput{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (f *fixture) status(t *testing.T, id uuid.UUID) transfer.Status {
	t.Helper()
	tr, err := f.transfers.Get(context.Background(), id)
	require.NoError(t, err)
	return tr.Status
}

func (f *fixture) entries(t *testing.T, id uuid.UUID) []ledger.Entry {
	t.Helper()
	entries, err := f.ledger.EntriesForTransfer(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func (f *fixture) assertZeroSum(t *testing.T) {
	t.Helper()
	totals, err := f.ledger.Totals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ledger.Imbalanced(totals))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, e notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func TestPostMovesFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "100.00", "USD")

	posted, err := posting.NewEngine(f.store).Post(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, transfer.StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)
	assert.Equal(t, transfer.StatusPosted, f.status(t, tr.ID))
	assert.Equal(t, "-100.00", f.balance(t, a.ID))
	assert.Equal(t, "100.00", f.balance(t, b.ID))

	entries := f.entries(t, tr.ID)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NotNil(t, e.TransferID)
		assert.Equal(t, tr.ID, *e.TransferID)
		assert.Equal(t, "USD", e.Currency)
	}
	f.assertZeroSum(t)
}

func TestPostTwiceIsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "10.00", "USD")
	engine := posting.NewEngine(f.store)

	_, err := engine.Post(ctx, tr.ID)
	require.NoError(t, err)
	_, err = engine.Post(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrInvalidState)

	assert.Len(t, f.entries(t, tr.ID), 2)
	assert.Equal(t, "-10.00", f.balance(t, a.ID))
}

func TestConcurrentPostsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "25.50", "USD")
	engine := posting.NewEngine(f.store)

	const workers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Post(ctx, tr.ID)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, invalid int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, transfer.ErrInvalidState):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, invalid)
	assert.Len(t, f.entries(t, tr.ID), 2)
	assert.Equal(t, "25.50", f.balance(t, b.ID))
}

func TestPostRejectsCurrencyMismatch(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name             string
		fromCur, toCur   string
		transferCurrency string
	}{
		{name: "transfer currency differs from both", fromCur: "USD", toCur: "USD", transferCurrency: "EUR"},
		{name: "destination differs", fromCur: "USD", toCur: "EUR", transferCurrency: "USD"},
		{name: "source differs", fromCur: "EUR", toCur: "USD", transferCurrency: "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			a, b := f.account(t, tt.fromCur), f.account(t, tt.toCur)
			tr := f.transfer(t, a.ID, b.ID, "5.00", tt.transferCurrency)

			_, err := posting.NewEngine(f.store).Post(ctx, tr.ID)
			assert.ErrorIs(t, err, posting.ErrCurrencyMismatch)
			assert.Equal(t, transfer.StatusPending, f.status(t, tr.ID))
			assert.Empty(t, f.entries(t, tr.ID))
		})
	}
}

func TestPostRejectsMissingAccount(t *testing.T) {
	f := newFixture()
	a := f.account(t, "USD")
	tr := f.transfer(t, a.ID, uuid.New(), "5.00", "USD")

	_, err := posting.NewEngine(f.store).Post(context.Background(), tr.ID)
	assert.ErrorIs(t, err, posting.ErrInvalidAccount)
	assert.Equal(t, transfer.StatusPending, f.status(t, tr.ID))
	assert.Empty(t, f.entries(t, tr.ID))
}

func TestPostUnknownTransfer(t *testing.T) {
	f := newFixture()
	_, err := posting.NewEngine(f.store).Post(context.Background(), uuid.New())
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestFaultBeforeCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "100.00", "USD")
	notifier := &recordingNotifier{}
	boom := errors.New("crash between writes and commit")

	faulty := posting.NewEngine(f.store,
		posting.WithNotifier(notifier),
		posting.WithBeforeCommit(func(transfer.Transfer) error { return boom }),
	)
	_, err := faulty.Post(ctx, tr.ID)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, transfer.StatusPending, f.status(t, tr.ID))
	assert.Empty(t, f.entries(t, tr.ID))
	assert.Equal(t, "0.00", f.balance(t, a.ID))
	assert.Equal(t, "0.00", f.balance(t, b.ID))
	assert.Empty(t, notifier.events)

	_, err = posting.NewEngine(f.store).Post(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", f.balance(t, b.ID))
}

func TestReverseAppendsInversePair(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "42.10", "USD")
	engine := posting.NewEngine(f.store)

	_, err := engine.Reverse(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrInvalidState)

	_, err = engine.Post(ctx, tr.ID)
	require.NoError(t, err)

	reversed, err := engine.Reverse(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusReversed, reversed.Status)
	assert.NotNil(t, reversed.ReversedAt)
	assert.NotNil(t, reversed.PostedAt)

	assert.Len(t, f.entries(t, tr.ID), 4)
	assert.Equal(t, "0.00", f.balance(t, a.ID))
	assert.Equal(t, "0.00", f.balance(t, b.ID))
	f.assertZeroSum(t)

	_, err = engine.Reverse(ctx, tr.ID)
	assert.ErrorIs(t, err, transfer.ErrInvalidState)
}

func TestFailAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	engine := posting.NewEngine(f.store)

	toFail := f.transfer(t, a.ID, b.ID, "1.00", "USD")
	failed, err := engine.Fail(ctx, toFail.ID, " card declined ")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusFailed, failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)
	assert.Empty(t, f.entries(t, toFail.ID))

	_, err = engine.Post(ctx, toFail.ID)
	assert.ErrorIs(t, err, transfer.ErrInvalidState)

	toCancel := f.transfer(t, a.ID, b.ID, "2.00", "USD")
	cancelled, err := engine.Cancel(ctx, toCancel.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCancelled, cancelled.Status)

	_, err = engine.Fail(ctx, toCancel.ID, "late")
	assert.ErrorIs(t, err, transfer.ErrInvalidState)

	posted := f.transfer(t, a.ID, b.ID, "3.00", "USD")
	_, err = engine.Post(ctx, posted.ID)
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, posted.ID)
	assert.ErrorIs(t, err, transfer.ErrInvalidState)

	assert.Equal(t, "-3.00", f.balance(t, a.ID))
}

func TestPolicyGatesSupplementaryTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "9.99", "USD")

	var seen []posting.Action
	deny := posting.PolicyFunc(func(_ context.Context, action posting.Action, _ transfer.Transfer) error {
		seen = append(seen, action)
		return authz.ErrForbidden
	})
	engine := posting.NewEngine(f.store, posting.WithPolicy(deny))

	_, err := engine.Cancel(ctx, tr.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = engine.Fail(ctx, tr.ID, "nope")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = engine.Post(ctx, tr.ID)
	require.NoError(t, err, "posting is not subject to the policy")

	_, err = engine.Reverse(ctx, tr.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	assert.Equal(t, []posting.Action{posting.ActionCancel, posting.ActionFail, posting.ActionReverse}, seen)
	assert.Equal(t, transfer.StatusPosted, f.status(t, tr.ID))
	assert.Len(t, f.entries(t, tr.ID), 2)
}

func TestNotifierReceivesCommittedTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.account(t, "USD"), f.account(t, "USD")
	tr := f.transfer(t, a.ID, b.ID, "7.00", "USD")
	notifier := &recordingNotifier{err: errors.New("broker unavailable")}
	engine := posting.NewEngine(f.store, posting.WithNotifier(notifier))

	_, err := engine.Post(ctx, tr.ID)
	require.NoError(t, err, "publish failures never undo a commit")
	_, err = engine.Reverse(ctx, tr.ID)
	require.NoError(t, err)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, notification.KindTransferPosted, notifier.events[0].Kind)
	assert.Equal(t, "7.00", notifier.events[0].Amount)
	assert.Equal(t, notification.KindTransferReversed, notifier.events[1].Kind)
	assert.Equal(t, tr.ID, notifier.events[1].TransferID)
}

func TestConcurrentTrafficKeepsLedgerBalanced(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	accounts := make([]account.Account, 4)
	for i := range accounts {
		accounts[i] = f.account(t, "USD")
	}
	treasury, err := f.accounts.EnsureTreasury(ctx, "USD")
	require.NoError(t, err)
	engine := posting.NewEngine(f.store)

	var transfers []transfer.Transfer
	for i := 0; i < 40; i++ {
		from := accounts[i%len(accounts)]
		to := accounts[(i+1)%len(accounts)]
		if i%5 == 0 {
			from = treasury
		}
		amount := decimal.New(int64(i+1)*125, -2).StringFixed(2)
		transfers = append(transfers, f.transfer(t, from.ID, to.ID, amount, "USD"))
	}

	var wg sync.WaitGroup
	for _, tr := range transfers {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = engine.Post(ctx, id)
		}(tr.ID)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = engine.Post(ctx, id)
		}(tr.ID)
	}
	wg.Wait()

	sum := decimal.Zero
	for _, acc := range append(accounts, treasury) {
		b, err := f.ledger.Balance(ctx, acc.ID)
		require.NoError(t, err)
		sum = sum.Add(b)
	}
	assert.True(t, sum.IsZero(), "balances sum to %s", sum)
	for _, tr := range transfers {
		assert.Len(t, f.entries(t, tr.ID), 2)
	}
	f.assertZeroSum(t)
}
