package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// maxAttachmentBytes bounds one multipart upload.
const maxAttachmentBytes = 64 << 20

// File handles encrypted attachment upload and download.
type File struct {
	attachmentService *service.Attachment
	contextManager    model.ContextManager
	logger            *logger.Logger
}

// NewFile creates a new File handler instance.
func NewFile(attachmentService *service.Attachment, contextManager model.ContextManager, logger *logger.Logger) *File {
	return &File{
		attachmentService: attachmentService,
		contextManager:    contextManager,
		logger:            logger,
	}
}

// RegisterRoutes registers the authenticated file routes.
func (h *File) RegisterRoutes(r chi.Router) {
	r.Post("/files", h.handleUpload)
	r.Get("/files/{key}", h.handleDownload)
}

func (h *File) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file form field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.attachmentService.Upload(r.Context(), owner, header.Filename, contentType, header.Size, file)
	if err != nil {
		h.logger.Error("File handler: upload failed",
			"owner", owner,
			"error", err.Error())
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *File) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	blob, err := h.attachmentService.Download(r.Context(), key)
	if err != nil {
		handleError(w, err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, blob); err != nil {
		h.logger.Error("File handler: download stream interrupted",
			"key", key,
			"error", err.Error())
	}
}
