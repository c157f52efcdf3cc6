package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatback/chatback/pkg/agents"
	"github.com/chatback/chatback/pkg/artifacts"
	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/mocks"
	"github.com/chatback/chatback/pkg/models"
	filepersistence "github.com/chatback/chatback/pkg/persistence/file"
)

const diagramOutput = "## Class Diagram\n```plantuml\n@startuml\nclass A\n@enduml\n```\n" +
	"## Use Case Diagram\n```plantuml\n@startuml\nactor U\n@enduml\n```\n" +
	"## Sequence Diagram\n```plantuml\n@startuml\nU -> S: x\n@enduml\n```\n" +
	"## Activity Diagram\n```plantuml\n@startuml\nstart\nstop\n@enduml\n```"

// routingResponder answers each agent by recognizing its system prompt.
func routingResponder(failDiagram bool) func(req llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		system := req.Messages[0].Content

		switch {
		case strings.Contains(system, "software architect"):
			if failDiagram {
				return "", errors.New("model overloaded")
			}

			return diagramOutput, nil
		case strings.Contains(system, "requirements engineer"):
			return "## Functional Requirements\nFR-1: Track items.\n## Non-Functional Requirements\nNFR-1: Fast.", nil
		case strings.Contains(system, "technical writer"):
			return "# SRS\nDraft document.", nil
		case strings.Contains(system, "senior reviewer"):
			return "# SRS\nReviewed document.", nil
		default:
			return "summary", nil
		}
	}
}

type testEnv struct {
	orchestrator *Orchestrator
	persistence  *filepersistence.Persistence
	store        *kv.MemoryStore
	registry     *agents.Registry
	memory       *memory.Memory
	artifacts    *artifacts.Store
	client       *mocks.ScriptedLLM
	session      *models.Session
}

func newTestEnv(t *testing.T, client *mocks.ScriptedLLM) *testEnv {
	t.Helper()

	ctx := context.Background()
	logger := slog.Default()
	p := filepersistence.NewPersistence(t.TempDir())
	store := kv.NewMemoryStore()
	mem := memory.NewMemory(p.Messages(), store, logger)

	diagram, err := agents.NewDiagramAgent(client, 0, logger)
	require.NoError(t, err)
	requirements, err := agents.NewRequirementsAgent(client, 0, logger)
	require.NoError(t, err)
	document, err := agents.NewDocumentAgent(client, 0, logger)
	require.NoError(t, err)
	reviewer, err := agents.NewReviewerAgent(client, logger)
	require.NoError(t, err)

	registry := agents.NewRegistry(diagram, requirements, document, reviewer)

	session := &models.Session{UserID: "user-1", Title: "Warehouse", State: models.SessionStateInterview}
	require.NoError(t, p.Sessions().Save(ctx, session))

	for _, msg := range []*models.Message{
		{SessionID: "", Role: models.RoleAssistant, Content: "What is the project?"},
		{SessionID: "", Role: models.RoleUser, Content: "A warehouse inventory system."},
	} {
		msg.SessionID = session.ID
		require.NoError(t, mem.Append(ctx, msg))
	}

	artifactStore := artifacts.NewStore(t.TempDir())
	orchestrator := NewOrchestrator(
		p, store, registry, artifactStore, mem, nil,
		Config{PhaseTimeout: 5 * time.Second, RunTTL: time.Hour}, logger,
	)

	return &testEnv{
		orchestrator: orchestrator,
		persistence:  p,
		store:        store,
		registry:     registry,
		memory:       mem,
		artifacts:    artifactStore,
		client:       client,
		session:      session,
	}
}

func TestOrchestrator_FullRun(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	result, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseDiagram])
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseRequirements])
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseDocument])
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseReviewer])

	// The reviewed document supersedes the draft.
	assert.Contains(t, result.Document, "Reviewed")

	// Steps follow the node order, with branch phases resolving in any order.
	steps := result.CompletedSteps
	assert.Equal(t, []string{"start", "interview", "branch"}, steps[:3])
	assert.ElementsMatch(t, []string{"diagram", "requirements"}, steps[3:5])
	assert.Equal(t, []string{"merge", "document", "reviewer", "end"}, steps[5:])

	// The session reached its terminal state.
	session, err := env.persistence.Sessions().GetByID(ctx, env.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateCompleted, session.State)

	// Phase rows are durable.
	results, err := env.persistence.PhaseResults().GetBySession(ctx, env.session.ID)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestOrchestrator_SkippedRequirementsPropagatesPlaceholder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	result, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{DisableRequirements: true})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseRequirements])
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseDiagram])
	assert.Equal(t, agents.PlaceholderNotAvailable, result.Requirements)

	// The document writer saw the placeholder, not empty text.
	var documentCall *llm.Request

	for i, call := range env.client.Calls() {
		if strings.Contains(call.Messages[0].Content, "technical writer") {
			calls := env.client.Calls()
			documentCall = &calls[i]
		}
	}

	require.NotNil(t, documentCall)
	assert.Contains(t, documentCall.Messages[1].Content, agents.PlaceholderNotAvailable)
}

func TestOrchestrator_BothBranchesSkippedStillMerges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	result, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{
		DisableDiagram:      true,
		DisableRequirements: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseDiagram])
	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseRequirements])
	assert.Contains(t, result.CompletedSteps, "merge")
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseDocument])
}

func TestOrchestrator_FailedPhaseResolvesJoin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(true)})

	result, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{})
	require.NoError(t, err)

	// A failed branch does not abort the run; it resolves the join and the
	// document receives the placeholder.
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, models.PhaseStatusFailed, result.PhaseStatus[models.PhaseDiagram])
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseRequirements])
	assert.Equal(t, agents.PlaceholderNotAvailable, result.Diagrams)
	assert.Equal(t, models.PhaseStatusDone, result.PhaseStatus[models.PhaseDocument])

	// The failure detail is durable on the phase row.
	row, err := env.persistence.PhaseResults().Get(ctx, env.session.ID, models.PhaseDiagram)
	require.NoError(t, err)
	assert.Contains(t, row.Error, "model overloaded")
}

func TestOrchestrator_PhaseTimeoutFailsPhaseNotRun(t *testing.T) {
	ctx := context.Background()
	client := &mocks.ScriptedLLM{Responder: routingResponder(false), Delay: 500 * time.Millisecond}
	env := newTestEnv(t, client)

	slow := NewOrchestrator(
		env.persistence, env.store, env.registry, env.artifacts, env.memory, nil,
		Config{PhaseTimeout: 30 * time.Millisecond, RunTTL: time.Hour}, slog.Default(),
	)

	result, err := slow.Run(ctx, env.session, models.WorkflowFlags{})
	require.NoError(t, err)

	// Every agent call exceeds the timeout, so every phase fails, yet the
	// run still walks through merge to End.
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, models.PhaseStatusFailed, result.PhaseStatus[models.PhaseDiagram])
	assert.Equal(t, models.PhaseStatusFailed, result.PhaseStatus[models.PhaseRequirements])
	assert.Equal(t, models.PhaseStatusFailed, result.PhaseStatus[models.PhaseDocument])
	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseReviewer])

	row, err := env.persistence.PhaseResults().Get(ctx, env.session.ID, models.PhaseDiagram)
	require.NoError(t, err)
	assert.Contains(t, row.Error, context.DeadlineExceeded.Error())
}

func TestOrchestrator_DisableDocument(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	result, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{DisableDocument: true})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseDocument])
	assert.Equal(t, models.PhaseStatusSkipped, result.PhaseStatus[models.PhaseReviewer])
	assert.Empty(t, result.Document)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
}

func TestOrchestrator_LoadRunFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	_, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{})
	require.NoError(t, err)

	run, err := env.orchestrator.LoadRun(ctx, env.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Len(t, run.Phases, 4)
}

func TestOrchestrator_LoadRunFromPhaseRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mocks.ScriptedLLM{Responder: routingResponder(false)})

	_, err := env.orchestrator.Run(ctx, env.session, models.WorkflowFlags{})
	require.NoError(t, err)

	// Expire the checkpoint; the run must be reconstructible from rows alone.
	require.NoError(t, env.store.Delete(ctx, runKeyPrefix+env.session.ID))

	run, err := env.orchestrator.LoadRun(ctx, env.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.PhaseStatusDone, run.Phases[models.PhaseDiagram].Status)
}

func TestOrchestrator_LoadRunMissing(t *testing.T) {
	env := newTestEnv(t, &mocks.ScriptedLLM{})

	_, err := env.orchestrator.LoadRun(context.Background(), "never-ran")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
