package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

// SessionRepository handles session-related database operations.
type SessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sql.DB, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

// Save inserts or updates a session. A missing ID is generated as UUIDv7 so
// creation order sorts naturally.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	session.UpdatedAt = now

	if session.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate session ID: %w", err)
		}

		session.ID = id.String()
	}

	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	query := `
		INSERT INTO sessions (id, user_id, title, state, metadata, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			state = EXCLUDED.state,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Title, session.State,
		metadata, session.CreatedAt, session.UpdatedAt, session.DeletedAt)
	if err != nil {
		return persistence.NewSessionError("Save", session.ID, err)
	}

	return nil
}

// GetByID returns a session by its ID, excluding soft-deleted rows.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT
			id
		  , user_id
		  , title
		  , state
		  , metadata
		  , created_at
		  , updated_at
		  , deleted_at
		FROM sessions
		WHERE id = $1 AND deleted_at IS NULL
	`

	session, err := r.scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSessionError("GetByID", id, persistence.ErrSessionNotFound)
		}

		return nil, persistence.NewSessionError("GetByID", id, err)
	}

	return session, nil
}

// ListByUser returns the user's sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT
			id
		  , user_id
		  , title
		  , state
		  , metadata
		  , created_at
		  , updated_at
		  , deleted_at
		FROM sessions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Delete soft deletes a session by setting deleted_at.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id)
	if err != nil {
		return persistence.NewSessionError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewSessionError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewSessionError("Delete", id, persistence.ErrSessionNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) scanSession(row rowScanner) (*models.Session, error) {
	var (
		session  models.Session
		metadata []byte
	)

	err := row.Scan(
		&session.ID, &session.UserID, &session.Title, &session.State,
		&metadata, &session.CreatedAt, &session.UpdatedAt, &session.DeletedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &session.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}

	return &session, nil
}
