package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByPublicID(ctx context.Context, publicID string) (User, error)
	List(ctx context.Context, excludePublicID string) ([]User, error)
	Delete(ctx context.Context, publicID string) error
	Count(ctx context.Context) (int64, error)
}

// User represents a registered account. PublicID is the opaque identity
// used in all external-facing routing; ID stays internal to the database.
type User struct {
	ID           uuid.UUID
	PublicID     string
	Email        string
	Username     string
	PasswordHash string
	PublicKey    string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the client-facing projection of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile returns the external view of the user keyed by public identity.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.PublicID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
