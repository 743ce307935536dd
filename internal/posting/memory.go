package posting

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// MemoryStore gives the in-memory repositories transactional semantics.
// Transfers are locked with a per-transfer mutex and writes are staged until
// commit, so a failed unit of work leaves nothing behind.
//
// A commit writes entries and transfer updates under commitMu. Readers that
// go through Transfers and Ledger share that lock, so they never observe the
// entries of a commit without its status change. Reading the wrapped
// repositories directly skips the barrier.
type MemoryStore struct {
	transfers transfer.Repository
	accounts  account.Repository
	ledger    ledger.Store

	locks    keyedMutex
	commitMu sync.RWMutex
}

// NewMemoryStore wraps in-memory repositories. Read paths should use
// Transfers and Ledger so committed writes become visible atomically.
func NewMemoryStore(transfers transfer.Repository, accounts account.Repository, store ledger.Store) *MemoryStore {
	return &MemoryStore{
		transfers: transfers,
		accounts:  accounts,
		ledger:    store,
		locks:     keyedMutex{locks: make(map[uuid.UUID]*refLock)},
	}
}

// WithinTx runs fn and applies its staged writes when it succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{store: s}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	// Every check that can fail runs before the first write.
	for _, t := range tx.updates {
		if _, err := s.transfers.Get(ctx, t.ID); err != nil {
			return err
		}
	}
	if err := s.ledger.Append(ctx, tx.entries...); err != nil {
		return err
	}
	for _, t := range tx.updates {
		if err := s.transfers.Update(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Transfers returns the transfer repository behind the commit barrier.
func (s *MemoryStore) Transfers() transfer.Repository {
	return barrierTransfers{store: s}
}

// Ledger returns the ledger store behind the commit barrier.
func (s *MemoryStore) Ledger() ledger.Store {
	return barrierLedger{store: s}
}

type barrierTransfers struct {
	store *MemoryStore
}

func (b barrierTransfers) Create(ctx context.Context, t transfer.Transfer) error {
	b.store.commitMu.Lock()
	defer b.store.commitMu.Unlock()
	return b.store.transfers.Create(ctx, t)
}

func (b barrierTransfers) Get(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.transfers.Get(ctx, id)
}

func (b barrierTransfers) GetForUpdate(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	return b.Get(ctx, id)
}

func (b barrierTransfers) Update(ctx context.Context, t transfer.Transfer) error {
	b.store.commitMu.Lock()
	defer b.store.commitMu.Unlock()
	return b.store.transfers.Update(ctx, t)
}

func (b barrierTransfers) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]transfer.Transfer, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.transfers.ListByAccount(ctx, accountID)
}

type barrierLedger struct {
	store *MemoryStore
}

func (b barrierLedger) Append(ctx context.Context, entries ...ledger.Entry) error {
	b.store.commitMu.Lock()
	defer b.store.commitMu.Unlock()
	return b.store.ledger.Append(ctx, entries...)
}

func (b barrierLedger) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.ledger.Balance(ctx, accountID)
}

func (b barrierLedger) Entries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.ledger.Entries(ctx, accountID)
}

func (b barrierLedger) EntriesForTransfer(ctx context.Context, transferID uuid.UUID) ([]ledger.Entry, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.ledger.EntriesForTransfer(ctx, transferID)
}

func (b barrierLedger) Totals(ctx context.Context) (map[string]decimal.Decimal, error) {
	b.store.commitMu.RLock()
	defer b.store.commitMu.RUnlock()
	return b.store.ledger.Totals(ctx)
}

type memoryTx struct {
	store   *MemoryStore
	unlocks []func()
	entries []ledger.Entry
	updates []transfer.Transfer
}

func (t *memoryTx) LockTransfer(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	t.unlocks = append(t.unlocks, t.store.locks.Lock(id))
	return t.store.transfers.Get(ctx, id)
}

func (t *memoryTx) Account(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return t.store.accounts.Get(ctx, id)
}

func (t *memoryTx) Append(_ context.Context, entries ...ledger.Entry) error {
	for _, e := range entries {
		if err := ledger.Validate(e); err != nil {
			return err
		}
	}
	t.entries = append(t.entries, entries...)
	return nil
}

func (t *memoryTx) UpdateTransfer(_ context.Context, tr transfer.Transfer) error {
	t.updates = append(t.updates, tr)
	return nil
}

func (t *memoryTx) release() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
}

type refLock struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per transfer id and forgets it once no
// goroutine holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
