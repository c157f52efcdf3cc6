// Package events defines event types published during a session's lifecycle,
// from interview completion through each phase to the finished workflow.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/chatback/chatback/pkg/models"
)

type EventType string

// Topic is the single stream carrying all session lifecycle events.
const Topic = "chatback.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	InterviewCompletedEvent EventType = "interview.completed"
	WorkflowStartedEvent    EventType = "workflow.started"
	WorkflowFinishedEvent   EventType = "workflow.finished"

	PhaseStartedEvent  EventType = "phase.started"
	PhaseFinishedEvent EventType = "phase.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
}

// InterviewCompleted is published when the last interview question is
// answered and the post-interview workflow may start.
type InterviewCompleted struct {
	BaseEvent

	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func (e InterviewCompleted) GetType() EventType {
	return InterviewCompletedEvent
}

func NewInterviewCompleted(sessionID, userID, title string) InterviewCompleted {
	return InterviewCompleted{
		BaseEvent: NewBaseEvent(InterviewCompletedEvent, sessionID),
		UserID:    userID,
		Title:     title,
	}
}

// WorkflowStarted is published when the orchestrator begins a run.
type WorkflowStarted struct {
	BaseEvent

	Flags models.WorkflowFlags `json:"flags"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

func NewWorkflowStarted(sessionID string, flags models.WorkflowFlags) WorkflowStarted {
	return WorkflowStarted{
		BaseEvent: NewBaseEvent(WorkflowStartedEvent, sessionID),
		Flags:     flags,
	}
}

// WorkflowFinished is published when the run reaches End, successfully or not.
type WorkflowFinished struct {
	BaseEvent

	Status         models.RunStatus                    `json:"status"`
	PhaseStatus    map[models.Phase]models.PhaseStatus `json:"phase_status"`
	CompletedSteps []string                            `json:"completed_steps"`
}

func (e WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

func NewWorkflowFinished(sessionID string, run *models.WorkflowRun) WorkflowFinished {
	return WorkflowFinished{
		BaseEvent:      NewBaseEvent(WorkflowFinishedEvent, sessionID),
		Status:         run.Status,
		PhaseStatus:    run.PhaseStatusMap(),
		CompletedSteps: run.CompletedSteps,
	}
}

// PhaseStarted is published when a phase moves to RUNNING.
type PhaseStarted struct {
	BaseEvent

	Phase models.Phase `json:"phase"`
}

func (e PhaseStarted) GetType() EventType {
	return PhaseStartedEvent
}

func NewPhaseStarted(sessionID string, phase models.Phase) PhaseStarted {
	return PhaseStarted{
		BaseEvent: NewBaseEvent(PhaseStartedEvent, sessionID),
		Phase:     phase,
	}
}

// PhaseFinished is published when a phase resolves to DONE, FAILED or SKIPPED.
type PhaseFinished struct {
	BaseEvent

	Phase  models.Phase       `json:"phase"`
	Status models.PhaseStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

func (e PhaseFinished) GetType() EventType {
	return PhaseFinishedEvent
}

func NewPhaseFinished(sessionID string, phase models.Phase, status models.PhaseStatus, errText string) PhaseFinished {
	return PhaseFinished{
		BaseEvent: NewBaseEvent(PhaseFinishedEvent, sessionID),
		Phase:     phase,
		Status:    status,
		Error:     errText,
	}
}
