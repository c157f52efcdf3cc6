// Package persistence provides the data storage abstraction for sessions,
// messages, interview state, and phase results.
package persistence

import (
	"context"
	"time"

	"github.com/chatback/chatback/pkg/models"
)

// SessionRepository stores session rows. Delete is a soft delete and
// cascades to the session's messages and interview state.
type SessionRepository interface {
	Save(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository stores conversation turns. Append-only.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// InterviewStateRepository stores one interview pointer per session.
// CompareAndSave is the atomic conditional update: it persists the new
// state only if the stored version still equals expectedVersion, returning
// ErrStateConflict otherwise.
type InterviewStateRepository interface {
	Create(ctx context.Context, state *models.InterviewState) error
	GetBySession(ctx context.Context, sessionID string) (*models.InterviewState, error)
	CompareAndSave(ctx context.Context, state *models.InterviewState, expectedVersion int64) error
}

// PhaseResultRepository stores per-phase execution records.
type PhaseResultRepository interface {
	Save(ctx context.Context, result *models.PhaseResult) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.PhaseResult, error)
	Get(ctx context.Context, sessionID string, phase models.Phase) (*models.PhaseResult, error)
}

// Persistence aggregates the repositories behind one connection lifecycle.
type Persistence interface {
	Sessions() SessionRepository
	Messages() MessageRepository
	InterviewStates() InterviewStateRepository
	PhaseResults() PhaseResultRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// PurgeOlderThan is implemented by backends that support bulk removal of
// soft-deleted sessions past the retention window.
type PurgeOlderThan interface {
	PurgeDeletedSessions(ctx context.Context, olderThan time.Time) (int, error)
}
