package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// TokenService resolves user ID from bearer tokens.
type TokenService interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate validates bearer tokens and injects the caller into the
// request context. The token comes from the Authorization header, or
// from the token query parameter for websocket upgrades, where browser
// clients cannot set headers.
type Authenticate struct {
	tokenService   TokenService
	userStore      model.UserStore
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(
	tokenService TokenService,
	userStore model.UserStore,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Authenticate {
	return &Authenticate{
		tokenService:   tokenService,
		userStore:      userStore,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Handle authenticates the request and stores the caller's user ID and
// public identity in the context.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, "missing authorization token")
			return
		}

		user, err := m.authenticateUser(r.Context(), tokenString)
		if err != nil {
			unauthorized(w, "invalid authorization token")
			return
		}

		ctx := m.contextManager.SetUserIDToContext(r.Context(), user.ID)
		ctx = m.contextManager.SetIdentityToContext(ctx, user.PublicID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers whose account is not flagged as admin.
// It must run inside Handle.
func (m *Authenticate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.contextManager.GetUserIDFromContext(r.Context())
		if !ok {
			unauthorized(w, "missing authorization token")
			return
		}

		user, err := m.userStore.GetByID(r.Context(), userID)
		if err != nil || !user.IsAdmin {
			forbidden(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Authenticate) authenticateUser(ctx context.Context, tokenString string) (model.User, error) {
	userID, err := m.tokenService.GetUserID(ctx, tokenString)
	if err != nil {
		return model.User{}, err
	}

	user, err := m.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	return user, nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"admin access required"}`))
}
