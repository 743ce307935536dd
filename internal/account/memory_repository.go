package account

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type classKey struct {
	owner    uuid.UUID
	kind     Kind
	currency string
	name     string
}

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]Account
	byClass map[classKey]uuid.UUID
}

// NewMemoryRepository constructs an in-memory repository for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[uuid.UUID]Account),
		byClass: make(map[classKey]uuid.UUID),
	}
}

func (r *memoryRepository) Create(_ context.Context, acc Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := classKey{owner: acc.OwnerID, kind: acc.Kind, currency: acc.Currency, name: acc.Name}
	if _, exists := r.byClass[key]; exists {
		return ErrDuplicateAccount
	}
	if _, exists := r.byID[acc.ID]; exists {
		return ErrDuplicateAccount
	}
	r.byID[acc.ID] = acc
	r.byClass[key] = acc.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *memoryRepository) FindByClass(_ context.Context, ownerID uuid.UUID, kind Kind, currency, name string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byClass[classKey{owner: ownerID, kind: kind, currency: currency, name: name}]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Account
	for _, acc := range r.byID {
		if acc.OwnerID == ownerID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
