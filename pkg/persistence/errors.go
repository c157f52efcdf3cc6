// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrSessionNotFound indicates a session was not found by the given identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInterviewStateNotFound indicates no interview state exists for the session.
	ErrInterviewStateNotFound = errors.New("interview state not found")

	// ErrPhaseResultNotFound indicates no phase result exists for the session/phase pair.
	ErrPhaseResultNotFound = errors.New("phase result not found")

	// ErrStateConflict indicates a conditional update lost the race: the
	// persisted interview position is not the expected prior position. The
	// caller should reload and retry rather than double-advance.
	ErrStateConflict = errors.New("interview state version conflict")

	// ErrSessionAlreadyExists indicates a session with the same identifier already exists.
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// SessionError wraps session-related errors with operation context.
type SessionError struct {
	Op        string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s operation failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSessionError creates a new session error with context.
func NewSessionError(op, sessionID string, err error) *SessionError {
	return &SessionError{Op: op, SessionID: sessionID, Err: err}
}

// PhaseError wraps phase-result errors with operation context.
type PhaseError struct {
	Op        string
	SessionID string
	Phase     string
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s operation failed for phase %s in session %s: %v", e.Op, e.Phase, e.SessionID, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func (e *PhaseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsSessionNotFound checks if an error indicates a session was not found.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsStateConflict checks if an error indicates a lost conditional update.
// Conflicts are retryable: the caller reloads state and re-applies the turn.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}
