package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatback/chatback/pkg/models"
)

// MessageRepository handles message-related database operations. The table
// is append-only; transcript order is creation order.
type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sql.DB, logger *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

// Append durably records one turn. The write completes before Append returns
// so a crash afterwards never loses the turn.
func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO messages (id, session_id, role, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		message.ID, message.SessionID, message.Role, message.Content, metadata, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

// ListBySession returns the session transcript in canonical order, oldest first.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	query := `
		SELECT
			id
		  , session_id
		  , role
		  , content
		  , metadata
		  , created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	messages := make([]*models.Message, 0)

	for rows.Next() {
		var (
			message  models.Message
			metadata []byte
		)

		err := rows.Scan(&message.ID, &message.SessionID, &message.Role,
			&message.Content, &metadata, &message.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if len(metadata) > 0 {
			err = json.Unmarshal(metadata, &message.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}

		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// DeleteBySession removes the session's transcript. Used by explicit user
// deletion; normal operation never deletes messages.
func (r *MessageRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete messages for session %s: %w", sessionID, err)
	}

	return nil
}
