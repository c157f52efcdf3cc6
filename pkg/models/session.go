// Package models defines the core domain models for the interview-to-document pipeline.
package models

import "time"

// SessionState represents the lifecycle state of a chat session.
type SessionState string

const (
	SessionStateInterview    SessionState = "interview"    // Structured interview in progress
	SessionStateDiagram      SessionState = "diagram"      // Diagram branch running
	SessionStateRequirements SessionState = "requirements" // Requirements branch running
	SessionStateMerging      SessionState = "merging"      // Waiting on the join barrier
	SessionStateDocument     SessionState = "document"     // SRS document generation running
	SessionStateCompleted    SessionState = "completed"    // Terminal, artifacts available
)

// Session represents one user's interview-to-document lifecycle.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"    validate:"required"`
	Title     string         `json:"title"      validate:"required,min=1"`
	State     SessionState   `json:"state"      validate:"required"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// Active reports whether the session still accepts user turns.
func (s *Session) Active() bool {
	return s.DeletedAt == nil && s.State != SessionStateCompleted
}

// InWorkflow reports whether the post-interview workflow owns the session.
func (s *Session) InWorkflow() bool {
	switch s.State {
	case SessionStateDiagram, SessionStateRequirements, SessionStateMerging, SessionStateDocument:
		return true
	default:
		return false
	}
}
