package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// Admin provides the inspection and deletion surface. Deleting a user
// tears down their live channel, revokes their tokens and cascades their
// messages in the store.
type Admin struct {
	userStore    model.UserStore
	messageStore model.MessageStore
	registry     model.ChannelRegistry
	tokenService *TokenService
	logger       *logger.Logger
}

func NewAdmin(
	userStore model.UserStore,
	messageStore model.MessageStore,
	registry model.ChannelRegistry,
	tokenService *TokenService,
	logger *logger.Logger,
) *Admin {
	return &Admin{
		userStore:    userStore,
		messageStore: messageStore,
		registry:     registry,
		tokenService: tokenService,
		logger:       logger,
	}
}

// Stats holds the aggregate counters shown on the admin surface.
type Stats struct {
	Users        int64 `json:"users"`
	Messages     int64 `json:"messages"`
	LiveChannels int   `json:"live_channels"`
}

func (s *Admin) ListUsers(ctx context.Context) ([]model.Profile, error) {
	users, err := s.userStore.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}

func (s *Admin) GetUser(ctx context.Context, identity string) (model.Profile, error) {
	user, err := s.userStore.GetByPublicID(ctx, identity)
	if err != nil {
		return model.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *Admin) DeleteUser(ctx context.Context, identity string) error {
	user, err := s.userStore.GetByPublicID(ctx, identity)
	if err != nil {
		return err
	}

	if ch, ok := s.registry.Lookup(identity); ok {
		_ = ch.Close("account deleted")
		s.registry.Unregister(identity, ch)
	}

	if err := s.tokenService.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	if err := s.userStore.Delete(ctx, identity); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("Admin service: user deleted", "identity", identity)
	return nil
}

func (s *Admin) ListMessages(ctx context.Context, limit int) ([]model.WirePayload, error) {
	if limit <= 0 {
		limit = 100
	}

	messages, err := s.messageStore.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	payloads := make([]model.WirePayload, 0, len(messages))
	for _, m := range messages {
		payloads = append(payloads, m.Wire())
	}
	return payloads, nil
}

func (s *Admin) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if err := s.messageStore.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Admin service: message deleted", "message_id", id.String())
	return nil
}

func (s *Admin) GetStats(ctx context.Context) (Stats, error) {
	users, err := s.userStore.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count users: %w", err)
	}
	messages, err := s.messageStore.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	return Stats{
		Users:        users,
		Messages:     messages,
		LiveChannels: s.registry.Len(),
	}, nil
}
