// Package session is the single entry point for inbound user turns. The
// coordinator routes each message to the interview state machine while the
// interview is active, starts the post-interview workflow exactly once when
// it completes, and reports workflow progress afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chatback/chatback/pkg/eventbus"
	"github.com/chatback/chatback/pkg/events"
	"github.com/chatback/chatback/pkg/interview"
	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/workflow"
)

// ErrEmptySessionID rejects turns with no session identifier before any
// state mutation.
var ErrEmptySessionID = errors.New("session id is required")

const (
	inflightKeyPrefix = "chatback:workflow:inflight:"
	inflightLockTTL   = 30 * time.Minute
)

// TurnResult is the reply to one user turn.
type TurnResult struct {
	Reply    string  `json:"reply"`
	Progress float64 `json:"progress"`
}

// StatusReport describes a session's current position in the pipeline.
type StatusReport struct {
	SessionID   string                              `json:"session_id"`
	State       models.SessionState                 `json:"state"`
	Progress    float64                             `json:"progress"`
	PhaseStatus map[models.Phase]models.PhaseStatus `json:"phase_status,omitempty"`
	Artifacts   map[models.Phase]string             `json:"artifacts,omitempty"`
}

// Coordinator wires the interview machine and the workflow orchestrator
// behind one handleMessage entry point. It is safe to call from concurrent
// server workers; duplicate delivery of a turn is rejected by the interview
// CAS and duplicate workflow starts by an in-flight lock.
type Coordinator struct {
	persistence  persistence.Persistence
	store        kv.Store
	machine      *interview.Machine
	orchestrator *workflow.Orchestrator
	memory       *memory.Memory
	publisher    eventbus.EventPublisher
	flags        models.WorkflowFlags
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewCoordinator builds a coordinator. The publisher may be nil.
func NewCoordinator(
	p persistence.Persistence,
	store kv.Store,
	machine *interview.Machine,
	orchestrator *workflow.Orchestrator,
	mem *memory.Memory,
	publisher eventbus.EventPublisher,
	flags models.WorkflowFlags,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		persistence:  p,
		store:        store,
		machine:      machine,
		orchestrator: orchestrator,
		memory:       mem,
		publisher:    publisher,
		flags:        flags,
		validate:     validator.New(),
		logger:       logger.With("module", "session"),
	}
}

// CreateSession creates a session, initializes its interview state, and
// records the personalized introduction as the first assistant turn.
func (c *Coordinator) CreateSession(ctx context.Context, userID, title, username string) (*models.Session, string, error) {
	session := &models.Session{
		UserID: userID,
		Title:  title,
		State:  models.SessionStateInterview,
	}

	err := c.validate.Struct(session)
	if err != nil {
		return nil, "", fmt.Errorf("invalid session: %w", err)
	}

	err = c.persistence.Sessions().Save(ctx, session)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	_, err = c.machine.Begin(ctx, session.ID)
	if err != nil {
		return nil, "", err
	}

	intro := c.machine.Introduction(username)

	err = c.memory.Append(ctx, &models.Message{
		SessionID: session.ID,
		Role:      models.RoleAssistant,
		Content:   intro,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to record introduction: %w", err)
	}

	return session, intro, nil
}

// HandleMessage processes one user turn and returns the reply plus current
// progress. Workflow runs triggered by interview completion do not block
// the turn that triggers them.
func (c *Coordinator) HandleMessage(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	session, err := c.persistence.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state, err := c.persistence.InterviewStates().GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !c.machine.IsComplete(state) {
		return c.handleInterviewTurn(ctx, session, state, userText)
	}

	return c.handleWorkflowTurn(ctx, session, userText)
}

func (c *Coordinator) handleInterviewTurn(ctx context.Context, session *models.Session, state *models.InterviewState, userText string) (*TurnResult, error) {
	reply, err := c.machine.ProcessMessage(ctx, state, userText)
	if err != nil {
		return nil, err
	}

	if c.machine.IsComplete(state) {
		c.publish(ctx, session.ID, events.NewInterviewCompleted(session.ID, session.UserID, session.Title))
		c.startWorkflow(ctx, session)
	}

	return &TurnResult{Reply: reply, Progress: state.Progress}, nil
}

// handleWorkflowTurn answers turns arriving after the interview finished:
// it starts the workflow if a previous start was lost, otherwise reports
// progress or the terminal document-ready reply.
func (c *Coordinator) handleWorkflowTurn(ctx context.Context, session *models.Session, userText string) (*TurnResult, error) {
	err := c.memory.Append(ctx, &models.Message{
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   userText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	if session.State == models.SessionStateCompleted {
		return &TurnResult{Reply: c.terminalReply(ctx, session), Progress: 1}, nil
	}

	c.startWorkflow(ctx, session)

	status, err := c.Status(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	reply := "Our specialized agents are processing your interview. Current status:\n" + formatPhaseStatus(status.PhaseStatus)

	return &TurnResult{Reply: reply, Progress: 1}, nil
}

// startWorkflow launches the orchestrator on its own goroutine, at most once
// per session. The in-flight lock defends against duplicate delivery and
// concurrent server workers.
func (c *Coordinator) startWorkflow(ctx context.Context, session *models.Session) {
	acquired, err := c.store.SetNX(ctx, inflightKeyPrefix+session.ID, "1", inflightLockTTL)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to acquire workflow lock", "session_id", session.ID, "error", err)

		return
	}

	if !acquired {
		return
	}

	c.logger.InfoContext(ctx, "Starting post-interview workflow", "session_id", session.ID)

	// The run outlives the HTTP turn that triggered it.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			err := c.store.Delete(runCtx, inflightKeyPrefix+session.ID)
			if err != nil {
				c.logger.WarnContext(runCtx, "Failed to release workflow lock", "session_id", session.ID, "error", err)
			}
		}()

		_, err := c.orchestrator.Run(runCtx, session, c.flags)
		if err != nil {
			c.logger.ErrorContext(runCtx, "Workflow run failed", "session_id", session.ID, "error", err)
		}
	}()
}

// Status reports the session's lifecycle state, interview progress, and any
// phase results so far.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (*StatusReport, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	session, err := c.persistence.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{SessionID: sessionID, State: session.State}

	state, err := c.persistence.InterviewStates().GetBySession(ctx, sessionID)
	if err == nil {
		report.Progress = state.Progress
	}

	results, err := c.persistence.PhaseResults().GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		report.PhaseStatus = make(map[models.Phase]models.PhaseStatus, len(results))
		report.Artifacts = make(map[models.Phase]string)

		for _, result := range results {
			report.PhaseStatus[result.Phase] = result.Status

			if result.ArtifactPath != "" {
				report.Artifacts[result.Phase] = result.ArtifactPath
			}
		}
	}

	return report, nil
}

// History returns the session transcript.
func (c *Coordinator) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	_, err := c.persistence.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return c.memory.History(ctx, sessionID)
}

// DeleteSession removes the session, its transcript, and its cached state.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySessionID
	}

	err := c.persistence.Sessions().Delete(ctx, sessionID)
	if err != nil {
		return err
	}

	err = c.memory.Clear(ctx, sessionID)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to clear session transcript", "session_id", sessionID, "error", err)
	}

	err = c.store.Delete(ctx, inflightKeyPrefix+sessionID)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to clear workflow lock", "session_id", sessionID, "error", err)
	}

	return nil
}

func (c *Coordinator) terminalReply(ctx context.Context, session *models.Session) string {
	var sb strings.Builder

	sb.WriteString("Your Software Requirements Specification is ready. Generated artifacts:\n")

	results, err := c.persistence.PhaseResults().GetBySession(ctx, session.ID)
	if err == nil {
		for _, result := range results {
			if result.Status == models.PhaseStatusDone && result.ArtifactPath != "" {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", result.Phase, result.ArtifactPath))
			}
		}
	}

	return sb.String()
}

func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	err := c.publisher.Publish(ctx, key, event)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func formatPhaseStatus(statuses map[models.Phase]models.PhaseStatus) string {
	var sb strings.Builder

	for _, phase := range []models.Phase{
		models.PhaseDiagram, models.PhaseRequirements, models.PhaseDocument, models.PhaseReviewer,
	} {
		if status, ok := statuses[phase]; ok {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", phase, status))
		}
	}

	return sb.String()
}
