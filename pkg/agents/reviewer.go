package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/models"
)

// ReviewerAgentName is the persona reviewing the SRS document.
const ReviewerAgentName = "Agent Brown"

// ReviewerAgent reviews the generated SRS document and returns the improved
// version as its artifact.
type ReviewerAgent struct {
	client  llm.Client
	prompts promptSet
	logger  *slog.Logger
}

// NewReviewerAgent builds the reviewer agent.
func NewReviewerAgent(client llm.Client, logger *slog.Logger) (*ReviewerAgent, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &ReviewerAgent{
		client:  client,
		prompts: prompts,
		logger:  logger.With("module", "agents", "agent", "reviewer"),
	}, nil
}

func (a *ReviewerAgent) Phase() models.Phase {
	return models.PhaseReviewer
}

func (a *ReviewerAgent) Run(ctx context.Context, input Input) (*Artifact, error) {
	if input.Document == "" {
		return nil, fmt.Errorf("no document to review")
	}

	system, user, err := a.prompts.render("review", map[string]any{
		"agent_name": ReviewerAgentName,
		"document":   input.Document,
	})
	if err != nil {
		return nil, err
	}

	content, err := complete(ctx, a.client, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to review document: %w", err)
	}

	return &Artifact{Phase: models.PhaseReviewer, Content: content}, nil
}
