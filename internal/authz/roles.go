package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/infra"
)

// PostgresRoleStore reads role assignments from the user_roles table, which is
// maintained by the external identity service.
type PostgresRoleStore struct {
	db infra.DBTX
}

// NewPostgresRoleStore builds a role checker backed by PostgreSQL.
func NewPostgresRoleStore(db infra.DBTX) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

// HasRole reports whether userID holds role.
func (s *PostgresRoleStore) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`, userID, role).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query user role: %w", err)
	}
	return ok, nil
}

// MemoryRoleStore is an in-memory role checker for tests and development.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]map[string]struct{}
}

// NewMemoryRoleStore builds an empty in-memory role store.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[uuid.UUID]map[string]struct{})}
}

// Grant assigns role to userID.
func (s *MemoryRoleStore) Grant(userID uuid.UUID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[string]struct{})
	}
	s.roles[userID][role] = struct{}{}
}

// HasRole reports whether userID holds role.
func (s *MemoryRoleStore) HasRole(_ context.Context, userID uuid.UUID, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[userID][role]
	return ok, nil
}
