package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// Auth handles registration and login. Passwords are stored as bcrypt
// hashes; the asymmetric public key is stored verbatim for peers to fetch.
type Auth struct {
	userStore    model.UserStore
	tokenService *TokenService
	logger       *logger.Logger
}

func NewAuth(userStore model.UserStore, tokenService *TokenService, logger *logger.Logger) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenService: tokenService,
		logger:       logger,
	}
}

// RegisterParams contains parameters to create an account.
type RegisterParams struct {
	Email     string
	Username  string
	Password  string
	PublicKey string
}

// Session is an issued token pair bound to a user.
type Session struct {
	UserID       uuid.UUID
	Identity     string
	AccessToken  string
	RefreshToken string
}

// Register creates a new account with a fresh opaque public identity.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (model.User, error) {
	if params.Email == "" || params.Password == "" {
		return model.User{}, fmt.Errorf("%w: email and password are required", model.ErrMalformedPayload)
	}

	existing, err := a.userStore.GetByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if existing.ID != uuid.Nil {
		a.logger.Info("Auth service: user already exists", "email", params.Email)
		return model.User{}, model.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := model.User{
		ID:           uuid.New(),
		PublicID:     uuid.NewString(),
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: string(hash),
		PublicKey:    params.PublicKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	saved, err := a.userStore.Create(ctx, user)
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) || errors.Is(err, model.ErrUsernameTaken) {
			return model.User{}, err
		}
		a.logger.Error("Auth service: failed to create user",
			"email", params.Email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registered",
		"email", saved.Email,
		"identity", saved.PublicID)

	return saved, nil
}

// Login verifies credentials and issues a token pair. A missing user and
// a bad password are indistinguishable to the caller.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("Auth service: failed login attempt", "email", email)
		return Session{}, model.ErrInvalidCredentials
	}

	access, refresh, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return Session{
		UserID:       user.ID,
		Identity:     user.PublicID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
