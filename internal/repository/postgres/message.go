package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ciphergram/ciphergram-server/internal/model"
)

var _ model.MessageStore = (*MessageRepository)(nil)

type MessageRepository struct {
	db *Connection
}

func NewMessageRepository(db *Connection) *MessageRepository {
	return &MessageRepository{
		db: db,
	}
}

const messageColumns = `id, sender_id, receiver_id, kind, body, structured, file_url, encrypted_key, iv, created_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	err := row.Scan(
		&m.ID, &m.Sender, &m.Receiver, &m.Kind, &m.Body, &m.Structured,
		&m.FileURL, &m.EncryptedKey, &m.IV, &m.CreatedAt,
	)
	return m, err
}

// Create inserts the record and returns it with the timestamp assigned by
// the database at write time.
func (r *MessageRepository) Create(ctx context.Context, message model.Message) (model.Message, error) {
	query := `INSERT INTO messages (id, sender_id, receiver_id, kind, body, structured, file_url, encrypted_key, iv)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + messageColumns

	saved, err := scanMessage(r.db.QueryRow(ctx, query,
		message.ID, message.Sender, message.Receiver, string(message.Kind),
		message.Body, message.Structured, message.FileURL, message.EncryptedKey, message.IV,
	))
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to create message: %w", err)
	}

	return saved, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, model.ErrNotFound
		}
		return model.Message{}, fmt.Errorf("failed to get message by id: %w", err)
	}

	return m, nil
}

// GetConversation returns all messages exchanged between the two
// identities in either direction, ascending by creation time.
func (r *MessageRepository) GetConversation(ctx context.Context, identityA, identityB string) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + `
			  FROM messages
			  WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			  ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, identityA, identityB)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *MessageRepository) List(ctx context.Context, limit int) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *MessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM messages WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func collectMessages(rows pgx.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
