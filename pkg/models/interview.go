package models

import "time"

// InterviewPhase is the lifecycle of the interview state machine.
type InterviewPhase string

const (
	InterviewPhaseInterview InterviewPhase = "interview" // Initial, answering questions
	InterviewPhaseDocument  InterviewPhase = "document"  // Answers complete, awaiting handoff
	InterviewPhaseCompleted InterviewPhase = "completed" // Terminal
)

// InterviewState tracks progress through the ordered question script.
// One row per session. Section is 1-based, QuestionIndex is 0-based within
// the section. Version is the optimistic-concurrency token: every update
// must carry the version it read, and the conditional write rejects stale
// writers instead of double-advancing the pointer.
type InterviewState struct {
	SessionID     string         `json:"session_id" validate:"required"`
	Section       int            `json:"section"`
	QuestionIndex int            `json:"question_index"`
	Answered      int            `json:"answered"`
	Phase         InterviewPhase `json:"phase"`
	Progress      float64        `json:"progress"`
	Version       int64          `json:"version"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Complete reports whether the interview reached its terminal phase.
func (s *InterviewState) Complete() bool {
	return s.Phase == InterviewPhaseCompleted
}

// MarkCompleted moves the state to its terminal phase and pins progress at 1.
// The document handoff phase collapses into the same persisted write, so
// completion is observed atomically and never reverts.
func (s *InterviewState) MarkCompleted() {
	s.Phase = InterviewPhaseCompleted
	s.Progress = 1
}
