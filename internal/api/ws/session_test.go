package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apicontext "github.com/ciphergram/ciphergram-server/internal/api/http/context"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/registry"
	"github.com/ciphergram/ciphergram-server/internal/service"
	"github.com/ciphergram/ciphergram-server/internal/testutil"
)

type fakeUserStore struct {
	byIdentity map[string]model.User
}

func (s *fakeUserStore) Create(_ context.Context, u model.User) (model.User, error) { return u, nil }
func (s *fakeUserStore) GetByEmail(context.Context, string) (model.User, error) {
	return model.User{}, model.ErrNotFound
}
func (s *fakeUserStore) GetByID(context.Context, uuid.UUID) (model.User, error) {
	return model.User{}, model.ErrNotFound
}
func (s *fakeUserStore) GetByPublicID(_ context.Context, publicID string) (model.User, error) {
	u, ok := s.byIdentity[publicID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}
func (s *fakeUserStore) List(context.Context, string) ([]model.User, error) { return nil, nil }
func (s *fakeUserStore) Delete(context.Context, string) error               { return nil }
func (s *fakeUserStore) Count(context.Context) (int64, error)               { return 0, nil }

type fakeMessageStore struct {
	mu      sync.Mutex
	created []model.Message
}

func (s *fakeMessageStore) Create(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CreatedAt = time.Now()
	s.created = append(s.created, m)
	return m, nil
}
func (s *fakeMessageStore) GetByID(context.Context, uuid.UUID) (model.Message, error) {
	return model.Message{}, model.ErrNotFound
}
func (s *fakeMessageStore) GetConversation(context.Context, string, string) ([]model.Message, error) {
	return nil, nil
}
func (s *fakeMessageStore) List(context.Context, int) ([]model.Message, error) { return nil, nil }
func (s *fakeMessageStore) Delete(context.Context, uuid.UUID) error            { return nil }
func (s *fakeMessageStore) Count(context.Context) (int64, error)               { return 0, nil }

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// newSessionServer builds a full live-channel stack behind an httptest
// server. Identity comes from the token query parameter, standing in
// for the authentication middleware.
func newSessionServer(t *testing.T, users *fakeUserStore, messages *fakeMessageStore) (*httptest.Server, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	m := metrics.New(prometheus.NewRegistry(), reg.Len)
	contextManager := apicontext.NewManager()
	dispatch := service.NewDispatch(users, messages, reg, m, testutil.MakeNoopLogger())

	h := NewHandler(reg, dispatch, contextManager, nil, m, testutil.MakeNoopLogger(), Options{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("token")
		if identity == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		ctx := contextManager.SetIdentityToContext(r.Context(), identity)
		h.Handle(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)

	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server, identity string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + identity
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func defaultUsers() *fakeUserStore {
	return &fakeUserStore{byIdentity: map[string]model.User{
		"u-1": {ID: uuid.New(), PublicID: "u-1", Username: "alice"},
		"u-2": {ID: uuid.New(), PublicID: "u-2", Username: "bob"},
	}}
}

func TestHandler_LiveDelivery(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, _ := newSessionServer(t, defaultUsers(), messages)

	alice := dial(t, srv, "u-1")
	bob := dial(t, srv, "u-2")

	require.NoError(t, alice.WriteJSON(map[string]any{
		"receiver": "u-2",
		"message":  "hi bob",
	}))

	frame := readFrame(t, bob)
	assert.Equal(t, "u-1", frame["sender"])
	assert.Equal(t, "u-2", frame["receiver"])
	assert.Equal(t, "hi bob", frame["message"])
	assert.Equal(t, 1, messages.count())
}

func TestHandler_OfflineReceiverStillStored(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, _ := newSessionServer(t, defaultUsers(), messages)

	alice := dial(t, srv, "u-1")

	require.NoError(t, alice.WriteJSON(map[string]any{
		"receiver": "u-2",
		"message":  "anyone home?",
	}))

	require.Eventually(t, func() bool {
		return messages.count() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHandler_MalformedPayloadKeepsSessionOpen(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, _ := newSessionServer(t, defaultUsers(), messages)

	alice := dial(t, srv, "u-1")
	bob := dial(t, srv, "u-2")

	// Missing receiver: rejected, session survives.
	require.NoError(t, alice.WriteJSON(map[string]any{"message": "to nobody"}))
	frame := readFrame(t, alice)
	assert.Contains(t, frame["error"], "malformed payload")
	assert.Equal(t, 0, messages.count())

	// The same session delivers fine afterwards.
	require.NoError(t, alice.WriteJSON(map[string]any{
		"receiver": "u-2",
		"message":  "still here",
	}))
	frame = readFrame(t, bob)
	assert.Equal(t, "still here", frame["message"])
}

func TestHandler_UnknownReceiverReported(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, _ := newSessionServer(t, defaultUsers(), messages)

	alice := dial(t, srv, "u-1")

	require.NoError(t, alice.WriteJSON(map[string]any{
		"receiver": "u-404",
		"message":  "hello?",
	}))

	frame := readFrame(t, alice)
	assert.Contains(t, frame["error"], "u-404")
	assert.Equal(t, 0, messages.count())
}

func TestHandler_ReconnectDisplacesOldSession(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, reg := newSessionServer(t, defaultUsers(), messages)

	first := dial(t, srv, "u-2")
	second := dial(t, srv, "u-2")

	// The first socket gets a close frame and stops receiving.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure) ||
		websocket.IsUnexpectedCloseError(err))

	assert.Equal(t, 1, reg.Len())

	// Deliveries land on the replacement.
	alice := dial(t, srv, "u-1")
	require.NoError(t, alice.WriteJSON(map[string]any{
		"receiver": "u-2",
		"message":  "to the new session",
	}))

	frame := readFrame(t, second)
	assert.Equal(t, "to the new session", frame["message"])
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	messages := &fakeMessageStore{}
	srv, reg := newSessionServer(t, defaultUsers(), messages)

	bob := dial(t, srv, "u-2")
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestHandler_MissingIdentityRejected(t *testing.T) {
	srv, _ := newSessionServer(t, defaultUsers(), &fakeMessageStore{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
