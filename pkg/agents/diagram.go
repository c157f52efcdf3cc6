package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/models"
)

// DiagramAgentName is the persona producing UML diagrams.
const DiagramAgentName = "Agent Jackson"

// requiredDiagramSections are the markdown headings every diagram artifact
// must contain. Missing sections get a fallback template and a note, never a
// discarded artifact.
var requiredDiagramSections = []string{
	"Class Diagram",
	"Use Case Diagram",
	"Sequence Diagram",
	"Activity Diagram",
}

// DiagramAgent turns the interview transcript into PlantUML diagrams.
type DiagramAgent struct {
	client  llm.Client
	prompts promptSet
	chunker *Chunker
	logger  *slog.Logger
}

// NewDiagramAgent builds the diagram agent.
func NewDiagramAgent(client llm.Client, chunkTokens int, logger *slog.Logger) (*DiagramAgent, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &DiagramAgent{
		client:  client,
		prompts: prompts,
		chunker: NewChunker(client, prompts, chunkTokens),
		logger:  logger.With("module", "agents", "agent", "diagram"),
	}, nil
}

func (a *DiagramAgent) Phase() models.Phase {
	return models.PhaseDiagram
}

// Run generates the four UML diagram types from the conversation. The
// transcript is condensed first when it exceeds the chunk budget. Partial
// output is kept: missing sections are filled with fallback templates and
// reported in the artifact notes.
func (a *DiagramAgent) Run(ctx context.Context, input Input) (*Artifact, error) {
	conversation, err := a.chunker.Condense(ctx, conversationText(input.Transcript))
	if err != nil {
		return nil, fmt.Errorf("failed to condense conversation: %w", err)
	}

	system, user, err := a.prompts.render("diagram", map[string]any{
		"agent_name":   DiagramAgentName,
		"conversation": conversation,
	})
	if err != nil {
		return nil, err
	}

	content, err := complete(ctx, a.client, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate diagrams: %w", err)
	}

	if !strings.Contains(content, "@startuml") || !strings.Contains(content, "@enduml") {
		return nil, fmt.Errorf("generated diagrams missing PlantUML markers")
	}

	artifact := &Artifact{Phase: models.PhaseDiagram, Content: content}

	for _, section := range requiredDiagramSections {
		if strings.Contains(content, section) {
			continue
		}

		a.logger.WarnContext(ctx, "Diagram section missing, applying fallback",
			"session_id", input.SessionID, "section", section)

		artifact.Content += "\n\n" + fallbackDiagram(section)
		artifact.Notes = append(artifact.Notes, fmt.Sprintf("%s not generated, fallback template used", section))
	}

	return artifact, nil
}

func fallbackDiagram(section string) string {
	template, ok := fallbackDiagrams[section]
	if !ok {
		return fmt.Sprintf("## %s\n\n_Not generated._", section)
	}

	return template
}

var fallbackDiagrams = map[string]string{
	"Class Diagram": "## Class Diagram\n```plantuml\n@startuml\nclass User {\n  +id: String\n  +name: String\n}\nclass System {\n  +id: String\n  +name: String\n}\nUser -- System : uses\n@enduml\n```",
	"Use Case Diagram": "## Use Case Diagram\n```plantuml\n@startuml\nleft to right direction\nactor User\nrectangle System {\n  User -- (Login)\n  User -- (View Dashboard)\n}\n@enduml\n```",
	"Sequence Diagram": "## Sequence Diagram\n```plantuml\n@startuml\nactor User\nparticipant \"Frontend\" as FE\nparticipant \"Backend\" as BE\nUser -> FE: Request\nFE -> BE: Process\nBE --> FE: Result\nFE --> User: Response\n@enduml\n```",
	"Activity Diagram": "## Activity Diagram\n```plantuml\n@startuml\nstart\n:Process Request;\nstop\n@enduml\n```",
}
