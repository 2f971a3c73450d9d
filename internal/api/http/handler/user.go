package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// User handles peer discovery and key lookups for authenticated callers.
type User struct {
	userService    *service.User
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewUser creates a new User handler instance.
func NewUser(userService *service.User, contextManager model.ContextManager, logger *logger.Logger) *User {
	return &User{
		userService:    userService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// RegisterRoutes registers the authenticated user routes.
func (h *User) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
	r.Get("/users/{identity}/public-key", h.handleGetPublicKey)
}

func (h *User) handleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	profiles, err := h.userService.List(r.Context(), caller)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profiles)
}

func (h *User) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	key, err := h.userService.GetPublicKey(r.Context(), identity)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":         identity,
		"public_key": key,
	})
}
