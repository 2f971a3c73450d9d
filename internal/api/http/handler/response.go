package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ciphergram/ciphergram-server/internal/model"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleError maps service errors to HTTP statuses. Anything unmapped
// is an internal error and its detail stays out of the response.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMalformedPayload):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, model.ErrTokenRevoked),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenMismatch):
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, model.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrEmailTaken),
		errors.Is(err, model.ErrUsernameTaken):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
