// Package main provides the chatback API server implementation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatback/chatback/pkg/agents"
	"github.com/chatback/chatback/pkg/artifacts"
	"github.com/chatback/chatback/pkg/config"
	"github.com/chatback/chatback/pkg/eventbus"
	"github.com/chatback/chatback/pkg/interview"
	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/session"
	"github.com/chatback/chatback/pkg/web"
	"github.com/chatback/chatback/pkg/workflow"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	store        kv.Store
	eventBus     eventbus.EventBus
	client       llm.Client
	config       *config.AppConfig
	artifactsDir string
	tracer       trace.Tracer
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	store kv.Store,
	eventBus eventbus.EventBus,
	client llm.Client,
	appConfig *config.AppConfig,
	artifactsDir string,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:       logger,
		persistence:  p,
		store:        store,
		eventBus:     eventBus,
		client:       client,
		config:       appConfig,
		artifactsDir: artifactsDir,
		tracer:       tracer,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	script, err := a.loadScript()
	if err != nil {
		return nil, err
	}

	mem := memory.NewMemory(a.persistence.Messages(), a.store, a.logger)
	machine := interview.NewMachine(script, a.persistence.InterviewStates(), mem, a.logger)

	diagram, err := agents.NewDiagramAgent(a.client, 0, a.logger)
	if err != nil {
		return nil, err
	}

	requirements, err := agents.NewRequirementsAgent(a.client, 0, a.logger)
	if err != nil {
		return nil, err
	}

	document, err := agents.NewDocumentAgent(a.client, 0, a.logger)
	if err != nil {
		return nil, err
	}

	reviewer, err := agents.NewReviewerAgent(a.client, a.logger)
	if err != nil {
		return nil, err
	}

	// Zero values fall back to the orchestrator defaults.
	workflowConfig := workflow.Config{
		PhaseTimeout: a.config.Workflow.PhaseTimeout.Std(),
		RunTTL:       a.config.Workflow.RunTTL.Std(),
	}

	files := artifacts.NewStore(a.artifactsDir)

	orchestrator := workflow.NewOrchestrator(
		a.persistence,
		a.store,
		agents.NewRegistry(diagram, requirements, document, reviewer),
		files,
		mem,
		a.eventBus,
		workflowConfig,
		a.logger,
	).WithTracer(a.tracer)

	coordinator := session.NewCoordinator(
		a.persistence, a.store, machine, orchestrator, mem, a.eventBus, a.config.Flags, a.logger,
	)

	chat := session.NewArtifactChat(a.persistence, a.store, files, mem, a.client, a.logger)

	handlers := web.NewAPIHandlers(coordinator, chat, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Chatback API")
	})

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

	return app, nil
}

func (a *API) loadScript() (*interview.Script, error) {
	if a.config.Interview.ScriptPath == "" {
		return interview.DefaultScript()
	}

	data, err := os.ReadFile(a.config.Interview.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read interview script: %w", err)
	}

	return interview.LoadScript(data)
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
