package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// Auth handles registration, login and token lifecycle requests.
type Auth struct {
	authService  *service.Auth
	tokenService *service.TokenService
	logger       *logger.Logger
}

// NewAuth creates a new Auth handler instance.
func NewAuth(authService *service.Auth, tokenService *service.TokenService, logger *logger.Logger) *Auth {
	return &Auth{
		authService:  authService,
		tokenService: tokenService,
		logger:       logger,
	}
}

// RegisterRoutes registers the unauthenticated auth routes.
func (h *Auth) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	PublicKey string `json:"public_key"`
}

func (h *Auth) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.Register(r.Context(), service.RegisterParams{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user.Profile())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Identity     string `json:"identity"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (h *Auth) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		Identity:     session.Identity,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Auth) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	access, refresh, err := h.tokenService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Info("Auth handler: refresh rejected", "error", err.Error())
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *Auth) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.tokenService.Revoke(r.Context(), req.RefreshToken); err != nil {
		// Revoking an already invalid token is not an error worth
		// reporting to the client.
		h.logger.Info("Auth handler: logout with invalid token", "error", err.Error())
	}

	w.WriteHeader(http.StatusNoContent)
}
