package service

import (
	"context"
	"fmt"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// User exposes discovery and history lookups.
type User struct {
	userStore    model.UserStore
	messageStore model.MessageStore
	logger       *logger.Logger
}

func NewUser(userStore model.UserStore, messageStore model.MessageStore, logger *logger.Logger) *User {
	return &User{
		userStore:    userStore,
		messageStore: messageStore,
		logger:       logger,
	}
}

// List returns all users except the caller, as client-facing profiles.
func (s *User) List(ctx context.Context, callerIdentity string) ([]model.Profile, error) {
	users, err := s.userStore.List(ctx, callerIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}

// GetPublicKey returns the asymmetric public key registered for identity.
func (s *User) GetPublicKey(ctx context.Context, identity string) (string, error) {
	user, err := s.userStore.GetByPublicID(ctx, identity)
	if err != nil {
		return "", err
	}
	return user.PublicKey, nil
}

// History returns all messages between the caller and peer, ascending by
// creation time, in the same projection a live push uses.
func (s *User) History(ctx context.Context, callerIdentity, peerIdentity string) ([]model.WirePayload, error) {
	if _, err := s.userStore.GetByPublicID(ctx, peerIdentity); err != nil {
		return nil, err
	}

	messages, err := s.messageStore.GetConversation(ctx, callerIdentity, peerIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	payloads := make([]model.WirePayload, 0, len(messages))
	for _, m := range messages {
		payloads = append(payloads, m.Wire())
	}
	return payloads, nil
}
