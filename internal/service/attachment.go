package service

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
)

// Attachment stores encrypted file and image blobs out of band. The
// returned key goes into the message record as the file reference; the
// blob itself stays opaque to the server.
type Attachment struct {
	storage model.Storage
	logger  *logger.Logger
}

func NewAttachment(storage model.Storage, logger *logger.Logger) *Attachment {
	return &Attachment{storage: storage, logger: logger}
}

// Upload stores one blob and returns its storage key. The original file
// name contributes only its extension; the key itself is random.
func (s *Attachment) Upload(ctx context.Context, ownerIdentity, filename, contentType string, size int64, reader io.Reader) (string, error) {
	key := uuid.NewString() + path.Ext(filename)

	if err := s.storage.Upload(ctx, key, reader, size, contentType); err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	s.logger.Info("Attachment service: blob stored",
		"owner", ownerIdentity,
		"key", key,
		"size", size)

	return key, nil
}

// Download streams the blob stored under key.
func (s *Attachment) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check attachment: %w", err)
	}
	if !exists {
		return nil, model.ErrNotFound
	}

	return s.storage.Download(ctx, key)
}
