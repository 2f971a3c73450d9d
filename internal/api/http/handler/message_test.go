package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/iotest"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apicontext "github.com/ciphergram/ciphergram-server/internal/api/http/context"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	servermocks "github.com/ciphergram/ciphergram-server/internal/mocks"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/registry"
	"github.com/ciphergram/ciphergram-server/internal/service"
	"github.com/ciphergram/ciphergram-server/internal/testutil"
)

// newMessageRouter builds the message routes with the caller identity
// pre-set, standing in for the authentication middleware.
func newMessageRouter(t *testing.T, identity string) (http.Handler, *servermocks.UserStore, *servermocks.MessageStore, *registry.Registry) {
	t.Helper()

	userStore := &servermocks.UserStore{}
	messageStore := &servermocks.MessageStore{}
	reg := registry.New()
	m := metrics.New(prometheus.NewRegistry(), reg.Len)
	contextManager := apicontext.NewManager()

	dispatch := service.NewDispatch(userStore, messageStore, reg, m, testutil.MakeNoopLogger())
	userService := service.NewUser(userStore, messageStore, testutil.MakeNoopLogger())
	h := NewMessage(dispatch, userService, contextManager, testutil.MakeNoopLogger())

	r := chi.NewRouter()
	if identity != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := contextManager.SetIdentityToContext(req.Context(), identity)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	h.RegisterRoutes(r)
	return r, userStore, messageStore, reg
}

func TestMessage_HandleSend(t *testing.T) {
	aliceUser := model.User{PublicID: "u-1"}
	bobUser := model.User{PublicID: "u-2"}

	t.Run("created and pushed live", func(t *testing.T) {
		router, userStore, messageStore, reg := newMessageRouter(t, "u-1")

		userStore.On("GetByPublicID", mock.Anything, "u-1").Return(aliceUser, nil)
		userStore.On("GetByPublicID", mock.Anything, "u-2").Return(bobUser, nil)
		messageStore.On("Create", mock.Anything, mock.Anything).
			Return(func(_ context.Context, m model.Message) (model.Message, error) { return m, nil })

		ch := &recordingChannel{}
		reg.Register("u-2", ch)

		body := []byte(`{"receiver":"u-2","message":"over http"}`)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var wire model.WirePayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
		assert.Equal(t, "u-1", wire.Sender)
		assert.Equal(t, json.RawMessage(`"over http"`), wire.Message)
		assert.Len(t, ch.pushes, 1)
	})

	t.Run("unknown receiver", func(t *testing.T) {
		router, userStore, _, _ := newMessageRouter(t, "u-1")

		userStore.On("GetByPublicID", mock.Anything, "u-1").Return(aliceUser, nil)
		userStore.On("GetByPublicID", mock.Anything, "u-404").Return(model.User{}, model.ErrNotFound)

		body := []byte(`{"receiver":"u-404","message":"hi"}`)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		router, _, _, _ := newMessageRouter(t, "u-1")

		body := []byte(`{"message":"no receiver"}`)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		router, _, _, _ := newMessageRouter(t, "u-1")

		body := bytes.Repeat([]byte("a"), 1<<20+1)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("body read failure", func(t *testing.T) {
		router, _, _, _ := newMessageRouter(t, "u-1")

		req := httptest.NewRequest(http.MethodPost, "/messages", iotest.ErrReader(errors.New("connection reset")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		router, _, _, _ := newMessageRouter(t, "")

		body := []byte(`{"receiver":"u-2","message":"hi"}`)
		req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMessage_HandleHistory(t *testing.T) {
	router, userStore, messageStore, _ := newMessageRouter(t, "u-1")

	userStore.On("GetByPublicID", mock.Anything, "u-2").Return(model.User{PublicID: "u-2"}, nil)
	messageStore.On("GetConversation", mock.Anything, "u-1", "u-2").Return([]model.Message{
		{Sender: "u-1", Receiver: "u-2", Kind: model.KindText, Body: "hi"},
		{Sender: "u-2", Receiver: "u-1", Kind: model.KindText, Body: "hello"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/u-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payloads []model.WirePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payloads))
	require.Len(t, payloads, 2)
	assert.Equal(t, json.RawMessage(`"hi"`), payloads[0].Message)
	assert.Equal(t, "u-2", payloads[1].Sender)
}

// recordingChannel collects pushed payloads.
type recordingChannel struct {
	pushes []model.WirePayload
}

func (c *recordingChannel) Push(p model.WirePayload) error {
	c.pushes = append(c.pushes, p)
	return nil
}

func (c *recordingChannel) Close(string) error { return nil }
