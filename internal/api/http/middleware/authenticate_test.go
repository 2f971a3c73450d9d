package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apicontext "github.com/ciphergram/ciphergram-server/internal/api/http/context"
	servermocks "github.com/ciphergram/ciphergram-server/internal/mocks"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/service"
	"github.com/ciphergram/ciphergram-server/internal/testutil"
	"github.com/ciphergram/ciphergram-server/internal/token"
)

func newAuthenticateFixture(t *testing.T) (*Authenticate, *servermocks.UserStore, *apicontext.Manager) {
	t.Helper()

	userStore := &servermocks.UserStore{}
	tokenStore := &servermocks.RefreshTokenStore{}
	tokenService := service.NewTokenService(token.NewJWT("test-secret"), tokenStore, testutil.MakeNoopLogger())
	contextManager := apicontext.NewManager()

	m := NewAuthenticate(tokenService, userStore, contextManager, testutil.MakeNoopLogger())
	return m, userStore, contextManager
}

func issueAccessToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	manager := token.NewJWT("test-secret")
	access, err := manager.GenerateAccessToken(userID)
	require.NoError(t, err)
	return access
}

func TestAuthenticate_Handle(t *testing.T) {
	userID := uuid.New()
	user := model.User{ID: userID, PublicID: "u-1"}

	t.Run("bearer header", func(t *testing.T) {
		m, userStore, contextManager := newAuthenticateFixture(t)
		userStore.On("GetByID", mock.Anything, userID).Return(user, nil)

		var gotIdentity string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotIdentity, _ = contextManager.GetIdentityFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issueAccessToken(t, userID))
		rec := httptest.NewRecorder()
		m.Handle(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", gotIdentity)
	})

	t.Run("token query parameter", func(t *testing.T) {
		m, userStore, _ := newAuthenticateFixture(t)
		userStore.On("GetByID", mock.Anything, userID).Return(user, nil)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/?token="+issueAccessToken(t, userID), nil)
		rec := httptest.NewRecorder()
		m.Handle(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		m, _, _ := newAuthenticateFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		m.Handle(http.NotFoundHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		m, _, _ := newAuthenticateFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		m.Handle(http.NotFoundHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		m, userStore, _ := newAuthenticateFixture(t)
		userStore.On("GetByID", mock.Anything, userID).Return(model.User{}, model.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issueAccessToken(t, userID))
		rec := httptest.NewRecorder()
		m.Handle(http.NotFoundHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticate_RequireAdmin(t *testing.T) {
	adminID := uuid.New()
	plainID := uuid.New()

	admin := model.User{ID: adminID, PublicID: "u-admin", IsAdmin: true}
	plain := model.User{ID: plainID, PublicID: "u-1"}

	t.Run("admin passes", func(t *testing.T) {
		m, userStore, contextManager := newAuthenticateFixture(t)
		userStore.On("GetByID", mock.Anything, adminID).Return(admin, nil)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(contextManager.SetUserIDToContext(req.Context(), adminID))
		rec := httptest.NewRecorder()
		m.RequireAdmin(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		m, userStore, contextManager := newAuthenticateFixture(t)
		userStore.On("GetByID", mock.Anything, plainID).Return(plain, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(contextManager.SetUserIDToContext(req.Context(), plainID))
		rec := httptest.NewRecorder()
		m.RequireAdmin(http.NotFoundHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		m, _, _ := newAuthenticateFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		m.RequireAdmin(http.NotFoundHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
