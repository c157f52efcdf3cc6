package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatback/chatback/pkg/agents"
	"github.com/chatback/chatback/pkg/artifacts"
	"github.com/chatback/chatback/pkg/interview"
	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/mocks"
	"github.com/chatback/chatback/pkg/models"
	filepersistence "github.com/chatback/chatback/pkg/persistence/file"
	"github.com/chatback/chatback/pkg/session"
	"github.com/chatback/chatback/pkg/web"
	"github.com/chatback/chatback/pkg/workflow"
)

const testScriptYAML = `
sections:
  - name: Overview
    questions:
      - What is the project?
      - Who is it for?
`

func testResponder(req llm.Request) (string, error) {
	if strings.Contains(req.Messages[0].Content, "answering questions") {
		return "Stock levels are tracked per warehouse.", nil
	}

	return "## Class Diagram\n```plantuml\n@startuml\nclass A\n@enduml\n```\n" +
		"## Use Case Diagram\n```plantuml\n@startuml\nactor U\n@enduml\n```\n" +
		"## Sequence Diagram\n```plantuml\n@startuml\nU -> S: x\n@enduml\n```\n" +
		"## Activity Diagram\n```plantuml\n@startuml\nstart\nstop\n@enduml\n```", nil
}

type testEnv struct {
	app   *fiber.App
	p     *filepersistence.Persistence
	files *artifacts.Store
}

func setupTestApp(t *testing.T) *fiber.App {
	return newTestEnv(t).app
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.Default()
	p := filepersistence.NewPersistence(t.TempDir())
	store := kv.NewMemoryStore()
	mem := memory.NewMemory(p.Messages(), store, logger)

	script, err := interview.LoadScript([]byte(testScriptYAML))
	require.NoError(t, err)

	machine := interview.NewMachine(script, p.InterviewStates(), mem, logger)

	client := &mocks.ScriptedLLM{Responder: testResponder}

	diagram, err := agents.NewDiagramAgent(client, 0, logger)
	require.NoError(t, err)
	requirements, err := agents.NewRequirementsAgent(client, 0, logger)
	require.NoError(t, err)
	document, err := agents.NewDocumentAgent(client, 0, logger)
	require.NoError(t, err)
	reviewer, err := agents.NewReviewerAgent(client, logger)
	require.NoError(t, err)

	files := artifacts.NewStore(t.TempDir())

	orchestrator := workflow.NewOrchestrator(
		p, store, agents.NewRegistry(diagram, requirements, document, reviewer),
		files, mem, nil,
		workflow.Config{PhaseTimeout: 5 * time.Second, RunTTL: time.Hour}, logger,
	)

	coordinator := session.NewCoordinator(p, store, machine, orchestrator, mem, nil, models.WorkflowFlags{}, logger)
	chat := session.NewArtifactChat(p, store, files, mem, client, logger)

	handlers := web.NewAPIHandlers(coordinator, chat, p, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	s := app.Group("/sessions")
	s.Post("/", handlers.CreateSession)
	s.Get("/", handlers.ListSessions)
	s.Get("/:id", handlers.GetSession)
	s.Delete("/:id", handlers.DeleteSession)
	s.Post("/:id/messages", handlers.PostMessage)
	s.Get("/:id/messages", handlers.GetMessages)
	s.Get("/:id/status", handlers.GetStatus)
	s.Post("/:id/artifacts/:phase/chat", handlers.PostArtifactChat)
	s.Get("/:id/artifacts/:phase/chat", handlers.GetArtifactChatHistory)
	s.Delete("/:id/artifacts/:phase/chat", handlers.DeleteArtifactChatHistory)

	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, p: p, files: files}
}

func createTestSession(t *testing.T, app *fiber.App) *web.CreateSessionResponse {
	t.Helper()

	body, err := json.Marshal(web.CreateSessionRequest{
		UserID:   "user-1",
		Title:    "Inventory",
		Username: "alex",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created web.CreateSessionResponse

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &created))

	return &created
}

func TestAPIHandlers_CreateSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateSessionRequest{
				UserID:   "user-1",
				Title:    "Inventory System",
				Username: "alex",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing user_id",
			requestBody: web.CreateSessionRequest{
				Title:    "Inventory System",
				Username: "alex",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing title",
			requestBody: web.CreateSessionRequest{
				UserID:   "user-1",
				Username: "alex",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			var (
				body []byte
				err  error
			)

			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				raw, err := io.ReadAll(resp.Body)
				require.NoError(t, err)

				var created web.CreateSessionResponse

				require.NoError(t, json.Unmarshal(raw, &created))
				assert.NotEmpty(t, created.Session.ID)
				assert.Equal(t, models.SessionStateInterview, created.Session.State)
				assert.Contains(t, created.Introduction, "What is the project?")
			}
		})
	}
}

func TestAPIHandlers_GetSession(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/sessions/missing", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ListSessions(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createTestSession(t, app)

	req := httptest.NewRequest(http.MethodGet, "/sessions/?user_id=user-1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Sessions   []*models.Session `json:"sessions"`
		TotalCount int               `json:"total_count"`
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listing))
	assert.Equal(t, 1, listing.TotalCount)

	// Missing user_id filter is rejected.
	req = httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_PostMessage(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	body, err := json.Marshal(web.PostMessageRequest{Message: "a web shop"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+created.Session.ID+"/messages", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn session.TurnResult

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &turn))
	assert.Contains(t, turn.Reply, "Who is it for?")
	assert.InDelta(t, 0.5, turn.Progress, 0.0001)
}

func TestAPIHandlers_PostMessageErrors(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	// Missing message field fails validation.
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+created.Session.ID+"/messages", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown session.
	body, err := json.Marshal(web.PostMessageRequest{Message: "hello"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/sessions/missing/messages", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetMessages(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID+"/messages", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Messages   []*models.Message `json:"messages"`
		TotalCount int               `json:"total_count"`
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listing))
	require.Equal(t, 1, listing.TotalCount)
	assert.Equal(t, models.RoleAssistant, listing.Messages[0].Role)
}

func TestAPIHandlers_GetStatus(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID+"/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status session.StatusReport

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, models.SessionStateInterview, status.State)
	assert.Zero(t, status.Progress)
}

func TestAPIHandlers_DeleteSession(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestSession(t, app)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+created.Session.ID, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// seedDocumentArtifact marks the document phase done with a stored artifact,
// as the orchestrator would after a completed run.
func seedDocumentArtifact(t *testing.T, env *testEnv, sessionID string) {
	t.Helper()

	ctx := context.Background()

	path, err := env.files.Write("user-1", "document", "Inventory", "# SRS Draft\n\nThe system tracks stock.")
	require.NoError(t, err)

	require.NoError(t, env.p.PhaseResults().Save(ctx, &models.PhaseResult{
		SessionID:    sessionID,
		Phase:        models.PhaseDocument,
		Status:       models.PhaseStatusDone,
		ArtifactPath: path,
	}))
}

func TestAPIHandlers_ArtifactChat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := createTestSession(t, env.app)
	seedDocumentArtifact(t, env, created.Session.ID)

	chatPath := "/sessions/" + created.Session.ID + "/artifacts/document/chat"

	body, err := json.Marshal(web.ArtifactChatRequest{Message: "How is stock tracked?"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, chatPath, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result session.ChatResult

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "Stock levels are tracked per warehouse.", result.Reply)
	require.Len(t, result.History, 2)
	assert.Equal(t, "user", result.History[0].Sender)

	// The history survives the turn and is readable on its own endpoint.
	req = httptest.NewRequest(http.MethodGet, chatPath, nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		History    []session.ChatTurn `json:"history"`
		TotalCount int                `json:"total_count"`
	}

	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listing))
	assert.Equal(t, 2, listing.TotalCount)
}

func TestAPIHandlers_DeleteArtifactChatHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := createTestSession(t, env.app)
	seedDocumentArtifact(t, env, created.Session.ID)

	chatPath := "/sessions/" + created.Session.ID + "/artifacts/document/chat"

	body, err := json.Marshal(web.ArtifactChatRequest{Message: "How is stock tracked?"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, chatPath, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, chatPath, nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, chatPath, nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		TotalCount int `json:"total_count"`
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listing))
	assert.Zero(t, listing.TotalCount)
}

func TestAPIHandlers_ArtifactChatErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := createTestSession(t, env.app)

	body, err := json.Marshal(web.ArtifactChatRequest{Message: "hello"})
	require.NoError(t, err)

	// No artifact produced for the phase yet.
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+created.Session.ID+"/artifacts/document/chat", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Unknown phase name.
	req = httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID+"/artifacts/blueprint/chat", nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing message field fails validation.
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+created.Session.ID+"/artifacts/document/chat", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown session.
	req = httptest.NewRequest(http.MethodGet, "/sessions/missing/artifacts/document/chat", nil)
	resp, err = env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
