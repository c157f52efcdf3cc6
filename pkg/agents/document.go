package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/models"
)

// DocumentAgentName is the persona writing the SRS document.
const DocumentAgentName = "Agent Jones"

// DocumentAgent writes the SRS document from the interview summary plus the
// merged diagram and requirements artifacts. Either input may be the
// not-available placeholder when its phase was skipped or failed.
type DocumentAgent struct {
	client  llm.Client
	prompts promptSet
	chunker *Chunker
	logger  *slog.Logger
}

// NewDocumentAgent builds the document writer agent.
func NewDocumentAgent(client llm.Client, chunkTokens int, logger *slog.Logger) (*DocumentAgent, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &DocumentAgent{
		client:  client,
		prompts: prompts,
		chunker: NewChunker(client, prompts, chunkTokens),
		logger:  logger.With("module", "agents", "agent", "document"),
	}, nil
}

func (a *DocumentAgent) Phase() models.Phase {
	return models.PhaseDocument
}

func (a *DocumentAgent) Run(ctx context.Context, input Input) (*Artifact, error) {
	conversation, err := a.chunker.Condense(ctx, conversationText(input.Transcript))
	if err != nil {
		return nil, fmt.Errorf("failed to condense conversation: %w", err)
	}

	title := input.Title
	if title == "" {
		title = "Untitled Project"
	}

	system, user, err := a.prompts.render("document", map[string]any{
		"agent_name":   DocumentAgentName,
		"title":        title,
		"conversation": conversation,
		"diagrams":     orPlaceholder(input.Diagrams),
		"requirements": orPlaceholder(input.Requirements),
	})
	if err != nil {
		return nil, err
	}

	content, err := complete(ctx, a.client, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	artifact := &Artifact{Phase: models.PhaseDocument, Content: content}

	if strings.TrimSpace(input.Diagrams) == "" || input.Diagrams == PlaceholderNotAvailable {
		artifact.Notes = append(artifact.Notes, "diagrams input not available")
	}

	if strings.TrimSpace(input.Requirements) == "" || input.Requirements == PlaceholderNotAvailable {
		artifact.Notes = append(artifact.Notes, "requirements input not available")
	}

	return artifact, nil
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return PlaceholderNotAvailable
	}

	return value
}
