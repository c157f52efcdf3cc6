package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

// InterviewStateRepository handles the per-session interview pointer.
type InterviewStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInterviewStateRepository creates a new interview state repository.
func NewInterviewStateRepository(db *sql.DB, logger *slog.Logger) *InterviewStateRepository {
	return &InterviewStateRepository{db: db, logger: logger}
}

// Create inserts the initial state for a fresh session at version 1.
func (r *InterviewStateRepository) Create(ctx context.Context, state *models.InterviewState) error {
	state.Version = 1
	state.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interview_states (session_id, section, question_index, answered, phase, progress, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		state.SessionID, state.Section, state.QuestionIndex, state.Answered,
		state.Phase, state.Progress, state.Version, state.UpdatedAt)
	if err != nil {
		return persistence.NewSessionError("CreateInterviewState", state.SessionID, err)
	}

	return nil
}

// GetBySession returns the interview state for a session.
func (r *InterviewStateRepository) GetBySession(ctx context.Context, sessionID string) (*models.InterviewState, error) {
	query := `
		SELECT
			session_id
		  , section
		  , question_index
		  , answered
		  , phase
		  , progress
		  , version
		  , updated_at
		FROM interview_states
		WHERE session_id = $1
	`

	var state models.InterviewState

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&state.SessionID, &state.Section, &state.QuestionIndex, &state.Answered,
		&state.Phase, &state.Progress, &state.Version, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSessionError("GetInterviewState", sessionID, persistence.ErrInterviewStateNotFound)
		}

		return nil, persistence.NewSessionError("GetInterviewState", sessionID, err)
	}

	return &state, nil
}

// CompareAndSave persists the advanced state only if the stored version is
// still expectedVersion. A zero-row update means another writer advanced the
// pointer first; the caller gets ErrStateConflict and must reload.
func (r *InterviewStateRepository) CompareAndSave(ctx context.Context, state *models.InterviewState, expectedVersion int64) error {
	state.Version = expectedVersion + 1
	state.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE interview_states
		SET section = $1, question_index = $2, answered = $3, phase = $4,
			progress = $5, version = $6, updated_at = $7
		WHERE session_id = $8 AND version = $9`,
		state.Section, state.QuestionIndex, state.Answered, state.Phase,
		state.Progress, state.Version, state.UpdatedAt,
		state.SessionID, expectedVersion)
	if err != nil {
		return persistence.NewSessionError("CompareAndSave", state.SessionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewSessionError("CompareAndSave", state.SessionID, err)
	}

	if affected == 0 {
		return persistence.NewSessionError("CompareAndSave", state.SessionID, persistence.ErrStateConflict)
	}

	return nil
}
