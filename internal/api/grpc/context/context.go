// Package context carries the authenticated owner through request contexts.
package context

import (
	"context"

	"github.com/google/uuid"
)

type ownerKey struct{}

// Manager stores the owner as a context value. Unlike incoming metadata, a
// value set here cannot be supplied by the caller.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) WithOwner(ctx context.Context, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the authenticated owner. uuid.Nil is never reported as set.
func (m *Manager) Owner(ctx context.Context) (uuid.UUID, bool) {
	owner, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	if !ok || owner == uuid.Nil {
		return uuid.Nil, false
	}
	return owner, true
}
