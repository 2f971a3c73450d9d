package context

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	identityKey contextKey = "identity"
)

// Manager stores and retrieves the authenticated caller in request
// contexts using unexported typed keys.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetUserIDToContext returns a child context carrying the internal user ID.
func (m *Manager) SetUserIDToContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext retrieves the internal user ID set by the
// authentication middleware.
func (m *Manager) GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// SetIdentityToContext returns a child context carrying the caller's
// public identity.
func (m *Manager) SetIdentityToContext(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentityFromContext retrieves the caller's public identity.
func (m *Manager) GetIdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}
