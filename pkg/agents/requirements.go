package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/models"
)

// RequirementsAgentName is the persona extracting requirements.
const RequirementsAgentName = "Agent Thompson"

// RequirementsAgent extracts categorized functional and non-functional
// requirements from the interview transcript.
type RequirementsAgent struct {
	client  llm.Client
	prompts promptSet
	chunker *Chunker
	logger  *slog.Logger
}

// NewRequirementsAgent builds the requirements agent.
func NewRequirementsAgent(client llm.Client, chunkTokens int, logger *slog.Logger) (*RequirementsAgent, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &RequirementsAgent{
		client:  client,
		prompts: prompts,
		chunker: NewChunker(client, prompts, chunkTokens),
		logger:  logger.With("module", "agents", "agent", "requirements"),
	}, nil
}

func (a *RequirementsAgent) Phase() models.Phase {
	return models.PhaseRequirements
}

func (a *RequirementsAgent) Run(ctx context.Context, input Input) (*Artifact, error) {
	conversation, err := a.chunker.Condense(ctx, conversationText(input.Transcript))
	if err != nil {
		return nil, fmt.Errorf("failed to condense conversation: %w", err)
	}

	system, user, err := a.prompts.render("requirements", map[string]any{
		"agent_name":   RequirementsAgentName,
		"conversation": conversation,
	})
	if err != nil {
		return nil, err
	}

	content, err := complete(ctx, a.client, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to extract requirements: %w", err)
	}

	return &Artifact{Phase: models.PhaseRequirements, Content: content}, nil
}
