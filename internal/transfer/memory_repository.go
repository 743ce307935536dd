package transfer

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Transfer
}

// NewMemoryRepository constructs an in-memory repository for tests. It takes
// no row locks; callers needing mutual exclusion bring their own.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[uuid.UUID]Transfer)}
}

func (r *memoryRepository) Create(_ context.Context, t Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[t.ID]; exists {
		return ErrInvalidState
	}
	r.storage[t.ID] = t
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.storage[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepository) Update(_ context.Context, t Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[t.ID]; !ok {
		return ErrNotFound
	}
	r.storage[t.ID] = t
	return nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transfer
	for _, t := range r.storage {
		if t.FromAccountID == accountID || t.ToAccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
