package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

// PhaseResultRepository handles per-phase execution records.
type PhaseResultRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPhaseResultRepository creates a new phase result repository.
func NewPhaseResultRepository(db *sql.DB, logger *slog.Logger) *PhaseResultRepository {
	return &PhaseResultRepository{db: db, logger: logger}
}

// Save upserts the phase result for a session/phase pair.
func (r *PhaseResultRepository) Save(ctx context.Context, result *models.PhaseResult) error {
	query := `
		INSERT INTO phase_results (session_id, phase, status, artifact, artifact_path, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, phase) DO UPDATE SET
			status = EXCLUDED.status,
			artifact = EXCLUDED.artifact,
			artifact_path = EXCLUDED.artifact_path,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		result.SessionID, result.Phase, result.Status, result.Artifact,
		result.ArtifactPath, result.Error, result.StartedAt, result.CompletedAt)
	if err != nil {
		return &persistence.PhaseError{Op: "Save", SessionID: result.SessionID, Phase: string(result.Phase), Err: err}
	}

	return nil
}

// GetBySession returns all phase results for a session.
func (r *PhaseResultRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.PhaseResult, error) {
	query := `
		SELECT
			session_id
		  , phase
		  , status
		  , artifact
		  , artifact_path
		  , error
		  , started_at
		  , completed_at
		FROM phase_results
		WHERE session_id = $1
		ORDER BY phase ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase results: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	results := make([]*models.PhaseResult, 0)

	for rows.Next() {
		var result models.PhaseResult

		err := rows.Scan(&result.SessionID, &result.Phase, &result.Status,
			&result.Artifact, &result.ArtifactPath, &result.Error,
			&result.StartedAt, &result.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phase result: %w", err)
		}

		results = append(results, &result)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating phase results: %w", err)
	}

	return results, nil
}

// Get returns one phase result.
func (r *PhaseResultRepository) Get(ctx context.Context, sessionID string, phase models.Phase) (*models.PhaseResult, error) {
	query := `
		SELECT
			session_id
		  , phase
		  , status
		  , artifact
		  , artifact_path
		  , error
		  , started_at
		  , completed_at
		FROM phase_results
		WHERE session_id = $1 AND phase = $2
	`

	var result models.PhaseResult

	err := r.db.QueryRowContext(ctx, query, sessionID, phase).Scan(
		&result.SessionID, &result.Phase, &result.Status,
		&result.Artifact, &result.ArtifactPath, &result.Error,
		&result.StartedAt, &result.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.PhaseError{
				Op: "Get", SessionID: sessionID, Phase: string(phase),
				Err: persistence.ErrPhaseResultNotFound,
			}
		}

		return nil, &persistence.PhaseError{Op: "Get", SessionID: sessionID, Phase: string(phase), Err: err}
	}

	return &result, nil
}
