package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// Message handles the HTTP send path and conversation history. Sending
// over HTTP goes through the same dispatcher as a channel send, so the
// durability-before-push ordering holds either way.
type Message struct {
	dispatch       *service.Dispatch
	userService    *service.User
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewMessage creates a new Message handler instance.
func NewMessage(
	dispatch *service.Dispatch,
	userService *service.User,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Message {
	return &Message{
		dispatch:       dispatch,
		userService:    userService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// RegisterRoutes registers the authenticated message routes.
func (h *Message) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.handleSend)
	r.Get("/messages/{identity}", h.handleHistory)
}

func (h *Message) handleSend(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	in, err := model.ParseInbound(raw)
	if err != nil {
		handleError(w, err)
		return
	}

	saved, err := h.dispatch.Deliver(r.Context(), sender, in)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, saved.Wire())
}

func (h *Message) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	peer := chi.URLParam(r, "identity")

	payloads, err := h.userService.History(r.Context(), caller, peer)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payloads)
}
