// Package workflow orchestrates post-interview processing: branch into the
// independent diagram and requirements phases, join, merge their outputs,
// conditionally write and review the SRS document, and assemble the final
// result. A failed phase never aborts the run; it resolves with an error and
// downstream phases receive a placeholder.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/chatback/chatback/pkg/agents"
	"github.com/chatback/chatback/pkg/artifacts"
	"github.com/chatback/chatback/pkg/eventbus"
	"github.com/chatback/chatback/pkg/events"
	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/otelhelper"
	"github.com/chatback/chatback/pkg/persistence"
)

// ErrFatalOrchestration indicates an internal invariant violation, such as
// reaching the join with an unresolved branch. The session is left in its
// last consistent persisted state.
var ErrFatalOrchestration = errors.New("fatal orchestration error")

// Config carries the orchestrator's tunables.
type Config struct {
	// PhaseTimeout bounds a single agent invocation.
	PhaseTimeout time.Duration
	// RunTTL bounds how long the run checkpoint lives in the key-value
	// store. Aligned to the session-data retention window.
	RunTTL time.Duration
}

// DefaultConfig provides production defaults.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	PhaseTimeout: 5 * time.Minute,
	RunTTL:       7 * 24 * time.Hour,
}

// Result is the final assembly reported at End.
type Result struct {
	SessionID      string                              `json:"session_id"`
	Status         models.RunStatus                    `json:"status"`
	PhaseStatus    map[models.Phase]models.PhaseStatus `json:"phase_status"`
	CompletedSteps []string                            `json:"completed_steps"`
	Diagrams       string                              `json:"diagrams,omitempty"`
	Requirements   string                              `json:"requirements,omitempty"`
	Document       string                              `json:"document,omitempty"`
}

// Orchestrator drives one session's workflow run at a time. It holds no
// cross-turn state: everything is reconstructible from the persistence layer
// and the run checkpoint.
type Orchestrator struct {
	persistence persistence.Persistence
	store       kv.Store
	registry    *agents.Registry
	artifacts   *artifacts.Store
	memory      *memory.Memory
	publisher   eventbus.EventPublisher
	config      Config
	logger      *slog.Logger
	tracer      trace.Tracer

	mu sync.Mutex
}

// NewOrchestrator wires an orchestrator. The publisher may be nil when no
// event bus is configured.
func NewOrchestrator(
	p persistence.Persistence,
	store kv.Store,
	registry *agents.Registry,
	artifactStore *artifacts.Store,
	mem *memory.Memory,
	publisher eventbus.EventPublisher,
	config Config,
	logger *slog.Logger,
) *Orchestrator {
	if config.PhaseTimeout <= 0 {
		config.PhaseTimeout = DefaultConfig.PhaseTimeout
	}

	if config.RunTTL <= 0 {
		config.RunTTL = DefaultConfig.RunTTL
	}

	return &Orchestrator{
		persistence: p,
		store:       store,
		registry:    registry,
		artifacts:   artifactStore,
		memory:      mem,
		publisher:   publisher,
		config:      config,
		logger:      logger.With("module", "workflow"),
		tracer:      noop.NewTracerProvider().Tracer("workflow"),
	}
}

// WithTracer installs a tracer for span-per-phase instrumentation and
// returns the orchestrator for chaining.
func (o *Orchestrator) WithTracer(tracer trace.Tracer) *Orchestrator {
	if tracer != nil {
		o.tracer = tracer
	}

	return o
}

// Run executes the full workflow for a session whose interview is complete.
// It blocks until End; callers wanting a non-blocking start run it on their
// own goroutine and observe progress through LoadRun and the phase rows.
func (o *Orchestrator) Run(ctx context.Context, session *models.Session, flags models.WorkflowFlags) (*Result, error) {
	logger := o.logger.With("session_id", session.ID)
	logger.InfoContext(ctx, "Starting workflow run", "flags", flags)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.run",
		attribute.String(otelhelper.SessionIDKey, session.ID),
		attribute.String(otelhelper.UserIDKey, session.UserID),
	)
	defer span.End()

	run := newRun(session.ID, flags)
	run.CompletedSteps = append(run.CompletedSteps, "start", "interview")

	o.checkpoint(ctx, run)
	o.publish(ctx, session.ID, events.NewWorkflowStarted(session.ID, flags))

	// Inputs are read up front; no lock is held while agents run.
	transcript, err := o.memory.History(ctx, session.ID)
	if err != nil {
		return nil, o.fatal(ctx, run, fmt.Errorf("failed to load transcript: %w", err))
	}

	input := agents.Input{
		SessionID:  session.ID,
		Title:      session.Title,
		Transcript: transcript,
	}

	// Branch. Each of the two independent phases resolves to done, failed
	// or skipped; completion order is unconstrained.
	run.CompletedSteps = append(run.CompletedSteps, "branch")
	o.setSessionState(ctx, session, branchState(flags))

	var wg sync.WaitGroup

	for _, phase := range []models.Phase{models.PhaseDiagram, models.PhaseRequirements} {
		if disabled(flags, phase) {
			o.skipPhase(ctx, run, phase)

			continue
		}

		wg.Add(1)

		go func(phase models.Phase) {
			defer wg.Done()
			o.runPhase(ctx, session, run, phase, input)
		}(phase)
	}

	wg.Wait()

	// Join barrier: Merge requires both branches resolved, even when both
	// were skipped.
	if !run.BranchesResolved() {
		return nil, o.fatal(ctx, run, fmt.Errorf("%w: merge reached with unresolved branches", ErrFatalOrchestration))
	}

	o.setSessionState(ctx, session, models.SessionStateMerging)

	diagramsText := o.phaseOutput(run, models.PhaseDiagram)
	requirementsText := o.phaseOutput(run, models.PhaseRequirements)

	run.CompletedSteps = append(run.CompletedSteps, "merge")
	o.checkpoint(ctx, run)

	// Document and review are conditional on one flag together.
	if flags.DisableDocument {
		o.skipPhase(ctx, run, models.PhaseDocument)
		o.skipPhase(ctx, run, models.PhaseReviewer)
	} else {
		o.setSessionState(ctx, session, models.SessionStateDocument)

		documentInput := input
		documentInput.Diagrams = diagramsText
		documentInput.Requirements = requirementsText

		o.runPhase(ctx, session, run, models.PhaseDocument, documentInput)

		if document := o.phaseArtifact(run, models.PhaseDocument); document != "" {
			reviewInput := input
			reviewInput.Document = document
			o.runPhase(ctx, session, run, models.PhaseReviewer, reviewInput)
		} else {
			o.skipPhase(ctx, run, models.PhaseReviewer)
		}
	}

	// End: assemble the final result and mark the session complete.
	run.CompletedSteps = append(run.CompletedSteps, "end")
	run.Status = models.RunStatusCompleted
	now := time.Now().UTC()
	run.FinishedAt = &now

	o.checkpoint(ctx, run)
	o.setSessionState(ctx, session, models.SessionStateCompleted)
	o.publish(ctx, session.ID, events.NewWorkflowFinished(session.ID, run))

	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(run.Status)))

	logger.InfoContext(ctx, "Workflow run finished",
		"status", run.Status, "completed_steps", run.CompletedSteps)

	return o.assemble(run, diagramsText, requirementsText), nil
}

func newRun(sessionID string, flags models.WorkflowFlags) *models.WorkflowRun {
	phases := make(map[models.Phase]models.PhaseResult, 4)
	for _, phase := range []models.Phase{
		models.PhaseDiagram, models.PhaseRequirements, models.PhaseDocument, models.PhaseReviewer,
	} {
		phases[phase] = models.PhaseResult{
			SessionID: sessionID,
			Phase:     phase,
			Status:    models.PhaseStatusPending,
		}
	}

	return &models.WorkflowRun{
		SessionID: sessionID,
		Flags:     flags,
		Status:    models.RunStatusRunning,
		Phases:    phases,
		StartedAt: time.Now().UTC(),
	}
}

// runPhase executes one phase through an agent: running, invoke with a
// bounded timeout, then done or failed. The phase row and the run checkpoint
// are persisted at every status edge.
func (o *Orchestrator) runPhase(ctx context.Context, session *models.Session, run *models.WorkflowRun, phase models.Phase, input agents.Input) {
	err := o.transition(ctx, run, phase, models.PhaseStatusRunning, "")
	if err != nil {
		o.logger.ErrorContext(ctx, "Illegal phase transition", "phase", phase, "error", err)

		return
	}

	o.publish(ctx, run.SessionID, events.NewPhaseStarted(run.SessionID, phase))

	agent, err := o.registry.Get(phase)
	if err != nil {
		o.failPhase(ctx, run, phase, err)

		return
	}

	phaseCtx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.phase",
		attribute.String(otelhelper.SessionIDKey, run.SessionID),
		attribute.String(otelhelper.PhaseKey, string(phase)),
	)
	defer span.End()

	agentCtx, cancel := context.WithTimeout(phaseCtx, o.config.PhaseTimeout)
	artifact, err := agent.Run(agentCtx, input)

	cancel()

	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.PhaseKey, string(phase)))
		o.failPhase(ctx, run, phase, err)

		return
	}

	span.SetAttributes(attribute.String(otelhelper.PhaseStatusKey, string(models.PhaseStatusDone)))

	o.mu.Lock()
	result := run.Phases[phase]
	result.Artifact = artifact.Content

	if len(artifact.Notes) > 0 {
		result.Error = fmt.Sprintf("partial: %v", artifact.Notes)
	}

	path, err := o.artifacts.Write(session.UserID, string(phase), session.Title, artifact.Content)
	if err != nil && !errors.Is(err, artifacts.ErrArtifactExists) {
		o.logger.WarnContext(ctx, "Failed to store artifact file", "phase", phase, "error", err)
	} else {
		result.ArtifactPath = path
	}

	run.Phases[phase] = result
	o.mu.Unlock()

	err = o.transition(ctx, run, phase, models.PhaseStatusDone, "")
	if err != nil {
		o.logger.ErrorContext(ctx, "Illegal phase transition", "phase", phase, "error", err)

		return
	}

	o.appendStep(run, string(phase))
	o.publish(ctx, run.SessionID, events.NewPhaseFinished(run.SessionID, phase, models.PhaseStatusDone, ""))
}

func (o *Orchestrator) skipPhase(ctx context.Context, run *models.WorkflowRun, phase models.Phase) {
	err := o.transition(ctx, run, phase, models.PhaseStatusSkipped, "")
	if err != nil {
		o.logger.ErrorContext(ctx, "Illegal phase transition", "phase", phase, "error", err)

		return
	}

	o.publish(ctx, run.SessionID, events.NewPhaseFinished(run.SessionID, phase, models.PhaseStatusSkipped, ""))
}

func (o *Orchestrator) failPhase(ctx context.Context, run *models.WorkflowRun, phase models.Phase, cause error) {
	o.logger.ErrorContext(ctx, "Phase failed", "phase", phase, "session_id", run.SessionID, "error", cause)

	err := o.transition(ctx, run, phase, models.PhaseStatusFailed, cause.Error())
	if err != nil {
		o.logger.ErrorContext(ctx, "Illegal phase transition", "phase", phase, "error", err)

		return
	}

	o.publish(ctx, run.SessionID, events.NewPhaseFinished(run.SessionID, phase, models.PhaseStatusFailed, cause.Error()))
}

// transition applies a status edge under the run lock and persists both the
// phase row and the run checkpoint.
func (o *Orchestrator) transition(ctx context.Context, run *models.WorkflowRun, phase models.Phase, to models.PhaseStatus, errText string) error {
	o.mu.Lock()

	result := run.Phases[phase]

	err := result.Transition(to)
	if err != nil {
		o.mu.Unlock()

		return err
	}

	if errText != "" {
		result.Error = errText
	}

	run.Phases[phase] = result
	saved := result
	o.mu.Unlock()

	err = o.persistence.PhaseResults().Save(ctx, &saved)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to persist phase result", "phase", phase, "error", err)
	}

	o.checkpoint(ctx, run)

	return nil
}

func (o *Orchestrator) appendStep(run *models.WorkflowRun, step string) {
	o.mu.Lock()
	run.CompletedSteps = append(run.CompletedSteps, step)
	o.mu.Unlock()
}

// phaseOutput returns the artifact text a downstream phase consumes, or the
// placeholder when the phase did not produce one.
func (o *Orchestrator) phaseOutput(run *models.WorkflowRun, phase models.Phase) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := run.Phases[phase]
	if result.Status == models.PhaseStatusDone && result.Artifact != "" {
		return result.Artifact
	}

	return agents.PlaceholderNotAvailable
}

func (o *Orchestrator) phaseArtifact(run *models.WorkflowRun, phase models.Phase) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := run.Phases[phase]
	if result.Status == models.PhaseStatusDone {
		return result.Artifact
	}

	return ""
}

func (o *Orchestrator) assemble(run *models.WorkflowRun, diagramsText, requirementsText string) *Result {
	document := ""

	// The reviewed document supersedes the writer's draft when the review
	// succeeded.
	if reviewed := o.phaseArtifact(run, models.PhaseReviewer); reviewed != "" {
		document = reviewed
	} else if draft := o.phaseArtifact(run, models.PhaseDocument); draft != "" {
		document = draft
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return &Result{
		SessionID:      run.SessionID,
		Status:         run.Status,
		PhaseStatus:    run.PhaseStatusMap(),
		CompletedSteps: run.CompletedSteps,
		Diagrams:       diagramsText,
		Requirements:   requirementsText,
		Document:       document,
	}
}

// fatal marks the run failed, checkpoints it, and returns the error. Phase
// rows already persisted remain intact.
func (o *Orchestrator) fatal(ctx context.Context, run *models.WorkflowRun, err error) error {
	o.logger.ErrorContext(ctx, "Workflow run aborted", "session_id", run.SessionID, "error", err)

	o.mu.Lock()
	run.Status = models.RunStatusFailed
	run.Error = err.Error()
	now := time.Now().UTC()
	run.FinishedAt = &now
	o.mu.Unlock()

	o.checkpoint(ctx, run)

	return err
}

func (o *Orchestrator) setSessionState(ctx context.Context, session *models.Session, state models.SessionState) {
	session.State = state

	err := o.persistence.Sessions().Save(ctx, session)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to persist session state", "session_id", session.ID, "state", state, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, key, event)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func disabled(flags models.WorkflowFlags, phase models.Phase) bool {
	switch phase {
	case models.PhaseDiagram:
		return flags.DisableDiagram
	case models.PhaseRequirements:
		return flags.DisableRequirements
	case models.PhaseDocument, models.PhaseReviewer:
		return flags.DisableDocument
	default:
		return false
	}
}

func branchState(flags models.WorkflowFlags) models.SessionState {
	if flags.DisableDiagram && !flags.DisableRequirements {
		return models.SessionStateRequirements
	}

	return models.SessionStateDiagram
}
