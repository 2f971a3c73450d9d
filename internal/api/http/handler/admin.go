package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// Admin handles the inspection and deletion surface.
type Admin struct {
	adminService *service.Admin
	logger       *logger.Logger
}

// NewAdmin creates a new Admin handler instance.
func NewAdmin(adminService *service.Admin, logger *logger.Logger) *Admin {
	return &Admin{adminService: adminService, logger: logger}
}

// RegisterRoutes registers the admin routes. The caller mounts these
// behind the admin-only middleware.
func (h *Admin) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{identity}", h.handleGetUser)
	r.Delete("/users/{identity}", h.handleDeleteUser)
	r.Get("/messages", h.handleListMessages)
	r.Delete("/messages/{id}", h.handleDeleteMessage)
}

func (h *Admin) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Admin) handleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profiles)
}

func (h *Admin) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	profile, err := h.adminService.GetUser(r.Context(), identity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *Admin) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	if err := h.adminService.DeleteUser(r.Context(), identity); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Admin) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	payloads, err := h.adminService.ListMessages(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payloads)
}

func (h *Admin) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.adminService.DeleteMessage(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
