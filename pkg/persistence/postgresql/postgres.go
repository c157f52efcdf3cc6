// Package postgresql provides PostgreSQL persistence for sessions, messages,
// interview state, and phase results.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db              *sql.DB
	logger          *slog.Logger
	sessionRepo     *SessionRepository
	messageRepo     *MessageRepository
	interviewRepo   *InterviewStateRepository
	phaseResultRepo *PhaseResultRepository
}

// NewPersistence opens the database, runs migrations, and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:              database,
		logger:          logger,
		sessionRepo:     NewSessionRepository(database, logger),
		messageRepo:     NewMessageRepository(database, logger),
		interviewRepo:   NewInterviewStateRepository(database, logger),
		phaseResultRepo: NewPhaseResultRepository(database, logger),
	}, nil
}

// Sessions returns the session repository.
func (p *Persistence) Sessions() persistence.SessionRepository {
	return p.sessionRepo
}

// Messages returns the message repository.
func (p *Persistence) Messages() persistence.MessageRepository {
	return p.messageRepo
}

// InterviewStates returns the interview state repository.
func (p *Persistence) InterviewStates() persistence.InterviewStateRepository {
	return p.interviewRepo
}

// PhaseResults returns the phase result repository.
func (p *Persistence) PhaseResults() persistence.PhaseResultRepository {
	return p.phaseResultRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// PurgeDeletedSessions hard-deletes soft-deleted sessions past the retention
// window; messages, interview state, and phase results cascade.
func (p *Persistence) PurgeDeletedSessions(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE deleted_at IS NOT NULL AND deleted_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}

	return int(affected), nil
}
