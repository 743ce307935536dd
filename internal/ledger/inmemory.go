package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger store useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{}
}

func (s *inMemoryStore) Append(_ context.Context, entries ...Entry) error {
	for _, e := range entries {
		if err := Validate(e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *inMemoryStore) Balance(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance := decimal.Zero
	for _, e := range s.entries {
		if e.AccountID == accountID {
			balance = balance.Add(e.Signed())
		}
	}
	return balance, nil
}

func (s *inMemoryStore) Entries(_ context.Context, accountID uuid.UUID) ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.AccountID == accountID }), nil
}

func (s *inMemoryStore) EntriesForTransfer(_ context.Context, transferID uuid.UUID) ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.TransferID != nil && *e.TransferID == transferID }), nil
}

func (s *inMemoryStore) Totals(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]decimal.Decimal)
	for _, e := range s.entries {
		totals[e.Currency] = totals[e.Currency].Add(e.Signed())
	}
	return totals, nil
}

func (s *inMemoryStore) filter(keep func(Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
