package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageStore defines persistence operations for messages.
// Create assigns the record timestamp at write time; GetConversation
// returns records between two identities ascending by that timestamp.
type MessageStore interface {
	Create(ctx context.Context, message Message) (Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (Message, error)
	GetConversation(ctx context.Context, identityA, identityB string) ([]Message, error)
	List(ctx context.Context, limit int) ([]Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

// MessageKind enumerates message payload kinds.
type MessageKind string

const (
	// KindText is a plain or structured text message stored inline.
	KindText MessageKind = "text"
	// KindImage is an encrypted image stored out of band.
	KindImage MessageKind = "image"
	// KindFile is an encrypted file stored out of band.
	KindFile MessageKind = "file"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// Message is a durable message record. Sender and Receiver carry public
// identities. For text kinds Body holds the content and Structured marks
// whether Body is canonical JSON rather than plain text; file and image
// kinds carry a storage reference plus client encryption metadata instead.
type Message struct {
	ID           uuid.UUID
	Sender       string
	Receiver     string
	Kind         MessageKind
	Body         string
	Structured   bool
	FileURL      string
	EncryptedKey string
	IV           string
	CreatedAt    time.Time
}

// WirePayload is the client-facing projection of a message. Live pushes
// and history queries both produce this shape, so a receiver renders a
// pushed message identically to a fetched one.
type WirePayload struct {
	ID           string          `json:"id"`
	Sender       string          `json:"sender"`
	Receiver     string          `json:"receiver"`
	Kind         MessageKind     `json:"kind"`
	Message      json.RawMessage `json:"message,omitempty"`
	FileURL      string          `json:"file_url,omitempty"`
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	IV           string          `json:"iv,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Wire returns the client-facing projection of the record. Structured
// bodies are emitted as their original JSON value, plain text as a JSON
// string; the stored variant tag decides, never the content itself.
func (m Message) Wire() WirePayload {
	p := WirePayload{
		ID:           m.ID.String(),
		Sender:       m.Sender,
		Receiver:     m.Receiver,
		Kind:         m.Kind,
		FileURL:      m.FileURL,
		EncryptedKey: m.EncryptedKey,
		IV:           m.IV,
		CreatedAt:    m.CreatedAt,
	}
	if m.Kind != KindText {
		return p
	}
	if m.Structured {
		p.Message = json.RawMessage(m.Body)
		return p
	}
	// Encoding a string cannot fail.
	quoted, _ := json.Marshal(m.Body)
	p.Message = quoted
	return p
}
