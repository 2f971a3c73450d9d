package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/ciphergram/ciphergram-server/internal/mocks"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/testutil"
)

func TestUser_List(t *testing.T) {
	userStore := &servermocks.UserStore{}
	messageStore := &servermocks.MessageStore{}
	svc := NewUser(userStore, messageStore, testutil.MakeNoopLogger())

	userStore.On("List", mock.Anything, "u-1").Return([]model.User{
		{PublicID: "u-2", Email: "bob@example.com", Username: "bob"},
		{PublicID: "u-3", Email: "carol@example.com"},
	}, nil)

	profiles, err := svc.List(context.Background(), "u-1")

	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "u-2", profiles[0].ID)
	assert.Equal(t, "bob", profiles[0].Username)
	assert.Equal(t, "u-3", profiles[1].ID)
}

func TestUser_GetPublicKey(t *testing.T) {
	userStore := &servermocks.UserStore{}
	svc := NewUser(userStore, &servermocks.MessageStore{}, testutil.MakeNoopLogger())

	t.Run("success", func(t *testing.T) {
		userStore.On("GetByPublicID", mock.Anything, "u-2").
			Return(model.User{PublicID: "u-2", PublicKey: "pem-data"}, nil)

		key, err := svc.GetPublicKey(context.Background(), "u-2")
		require.NoError(t, err)
		assert.Equal(t, "pem-data", key)
	})

	t.Run("unknown identity", func(t *testing.T) {
		userStore.On("GetByPublicID", mock.Anything, "u-404").
			Return(model.User{}, model.ErrNotFound)

		_, err := svc.GetPublicKey(context.Background(), "u-404")
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestUser_History(t *testing.T) {
	ctx := context.Background()

	t.Run("returns both directions in wire form", func(t *testing.T) {
		userStore := &servermocks.UserStore{}
		messageStore := &servermocks.MessageStore{}
		svc := NewUser(userStore, messageStore, testutil.MakeNoopLogger())

		userStore.On("GetByPublicID", mock.Anything, "u-2").
			Return(model.User{PublicID: "u-2"}, nil)
		messageStore.On("GetConversation", mock.Anything, "u-1", "u-2").Return([]model.Message{
			{ID: uuid.New(), Sender: "u-1", Receiver: "u-2", Kind: model.KindText, Body: "hi", CreatedAt: time.Now().Add(-time.Minute)},
			{ID: uuid.New(), Sender: "u-2", Receiver: "u-1", Kind: model.KindText, Body: `{"a":1}`, Structured: true, CreatedAt: time.Now()},
		}, nil)

		payloads, err := svc.History(ctx, "u-1", "u-2")

		require.NoError(t, err)
		require.Len(t, payloads, 2)
		assert.Equal(t, json.RawMessage(`"hi"`), payloads[0].Message)
		assert.Equal(t, json.RawMessage(`{"a":1}`), payloads[1].Message)
		assert.Equal(t, "u-2", payloads[1].Sender)
	})

	t.Run("unknown peer", func(t *testing.T) {
		userStore := &servermocks.UserStore{}
		messageStore := &servermocks.MessageStore{}
		svc := NewUser(userStore, messageStore, testutil.MakeNoopLogger())

		userStore.On("GetByPublicID", mock.Anything, "u-404").
			Return(model.User{}, model.ErrNotFound)

		_, err := svc.History(ctx, "u-1", "u-404")
		require.ErrorIs(t, err, model.ErrNotFound)
		messageStore.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty conversation", func(t *testing.T) {
		userStore := &servermocks.UserStore{}
		messageStore := &servermocks.MessageStore{}
		svc := NewUser(userStore, messageStore, testutil.MakeNoopLogger())

		userStore.On("GetByPublicID", mock.Anything, "u-2").
			Return(model.User{PublicID: "u-2"}, nil)
		messageStore.On("GetConversation", mock.Anything, "u-1", "u-2").
			Return([]model.Message{}, nil)

		payloads, err := svc.History(ctx, "u-1", "u-2")
		require.NoError(t, err)
		assert.Empty(t, payloads)
	})
}
