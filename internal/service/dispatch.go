package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// Dispatch persists a message and attempts immediate live delivery.
// Durability always precedes the live push: a store failure aborts the
// dispatch, while a failed or impossible push is swallowed because the
// record is already retrievable by history query.
type Dispatch struct {
	userStore    model.UserStore
	messageStore model.MessageStore
	registry     model.ChannelRegistry
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewDispatch(
	userStore model.UserStore,
	messageStore model.MessageStore,
	registry model.ChannelRegistry,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Dispatch {
	return &Dispatch{
		userStore:    userStore,
		messageStore: messageStore,
		registry:     registry,
		metrics:      metrics,
		logger:       logger,
	}
}

// Deliver dispatches one message from sender to the receiver named in the
// inbound payload. It returns the stored record; the caller decides how
// to surface it (HTTP response or nothing at all for channel sends).
func (s *Dispatch) Deliver(ctx context.Context, sender string, in model.Inbound) (model.Message, error) {
	if err := in.Validate(); err != nil {
		return model.Message{}, err
	}

	if _, err := s.userStore.GetByPublicID(ctx, sender); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Message{}, fmt.Errorf("unknown sender %q: %w", sender, model.ErrNotFound)
		}
		return model.Message{}, fmt.Errorf("failed to resolve sender: %w", err)
	}
	if _, err := s.userStore.GetByPublicID(ctx, in.Receiver); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Message{}, fmt.Errorf("unknown receiver %q: %w", in.Receiver, model.ErrNotFound)
		}
		return model.Message{}, fmt.Errorf("failed to resolve receiver: %w", err)
	}

	message := model.Message{
		ID:       uuid.New(),
		Sender:   sender,
		Receiver: in.Receiver,
		Kind:     in.Kind,
	}
	switch in.Kind {
	case model.KindText:
		body, structured, err := model.NormalizeBody(in.Message)
		if err != nil {
			return model.Message{}, err
		}
		message.Body = body
		message.Structured = structured
	case model.KindImage, model.KindFile:
		message.FileURL = in.FileURL
		message.EncryptedKey = in.EncryptedKey
		message.IV = in.IV
	}

	// The durable write must complete even when the sender's socket is
	// torn down mid-dispatch.
	saved, err := s.messageStore.Create(context.WithoutCancel(ctx), message)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to store message: %w", err)
	}
	s.metrics.MessagesDelivered.WithLabelValues(string(saved.Kind)).Inc()

	s.pushLive(saved)

	return saved, nil
}

// pushLive attempts best-effort immediate delivery. A miss is recorded
// but never surfaced: the message is durable and queryable either way.
func (s *Dispatch) pushLive(message model.Message) {
	ch, ok := s.registry.Lookup(message.Receiver)
	if !ok {
		s.metrics.DeliveryMisses.Inc()
		return
	}

	if err := ch.Push(message.Wire()); err != nil {
		s.metrics.DeliveryMisses.Inc()
		s.logger.Debug("Dispatch: live push failed",
			"receiver", message.Receiver,
			"message_id", message.ID.String(),
			"error", err.Error())
	}
}
