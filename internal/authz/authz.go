// Package authz holds the capability checks that gate every ledger
// operation: "caller owns account" and "caller holds role".
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RoleAdmin is the role allowed to act on any account and drive non-posting transitions.
const RoleAdmin = "admin"

var (
	// ErrUnauthenticated is returned when no caller identity is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the caller lacks the required capability.
	ErrForbidden = errors.New("forbidden")
)

// Caller is an identity already authenticated by the external auth provider.
type Caller struct {
	UserID uuid.UUID
}

type callerKey struct{}

// WithCaller attaches the caller to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller attached to ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok && caller.UserID != uuid.Nil
}

// OwnerLookup resolves which identity owns an account.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error)
}

// RoleChecker answers whether an identity holds a role.
type RoleChecker interface {
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
}

// Authorizer evaluates ownership and role capabilities for the caller in ctx.
type Authorizer struct {
	owners OwnerLookup
	roles  RoleChecker
}

// NewAuthorizer builds an Authorizer.
func NewAuthorizer(owners OwnerLookup, roles RoleChecker) *Authorizer {
	return &Authorizer{owners: owners, roles: roles}
}

// IsAdmin reports whether the caller in ctx holds the admin role.
func (a *Authorizer) IsAdmin(ctx context.Context) (bool, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return false, ErrUnauthenticated
	}
	if a.roles == nil {
		return false, nil
	}
	return a.roles.HasRole(ctx, caller.UserID, RoleAdmin)
}

// RequireAdmin fails with ErrForbidden unless the caller is an admin.
func (a *Authorizer) RequireAdmin(ctx context.Context) error {
	admin, err := a.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

// RequireAccountAccess passes when the caller owns any of the accounts or is an admin.
// Lookup errors such as a missing account are returned unchanged.
func (a *Authorizer) RequireAccountAccess(ctx context.Context, accountIDs ...uuid.UUID) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	for _, id := range accountIDs {
		owner, err := a.owners.OwnerOf(ctx, id)
		if err != nil {
			return err
		}
		if owner == caller.UserID {
			return nil
		}
	}
	admin, err := a.IsAdmin(ctx)
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

// RequireIdentity passes when the caller is userID or an admin.
func (a *Authorizer) RequireIdentity(ctx context.Context, userID uuid.UUID) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if caller.UserID == userID {
		return nil
	}
	return a.RequireAdmin(ctx)
}
