package context

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_UserID(t *testing.T) {
	m := NewManager()

	t.Run("round trip", func(t *testing.T) {
		userID := uuid.New()

		ctx := m.SetUserIDToContext(context.Background(), userID)
		got, ok := m.GetUserIDFromContext(ctx)

		require.True(t, ok)
		assert.Equal(t, userID, got)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := m.GetUserIDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("nil uuid is treated as absent", func(t *testing.T) {
		ctx := m.SetUserIDToContext(context.Background(), uuid.Nil)
		_, ok := m.GetUserIDFromContext(ctx)
		assert.False(t, ok)
	})
}

func TestManager_Identity(t *testing.T) {
	m := NewManager()

	t.Run("round trip", func(t *testing.T) {
		ctx := m.SetIdentityToContext(context.Background(), "u-1")
		got, ok := m.GetIdentityFromContext(ctx)

		require.True(t, ok)
		assert.Equal(t, "u-1", got)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := m.GetIdentityFromContext(context.Background())
		assert.False(t, ok)
	})
}
