// Package agents implements the post-interview phase agents: diagram
// modeling, requirements extraction, SRS document writing, and document
// review. All agents share one contract and are stateless between runs.
package agents

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/template"
)

// PlaceholderNotAvailable marks a phase input whose producing phase was
// skipped or failed. Downstream agents receive it instead of real content.
const PlaceholderNotAvailable = "[Not available]"

// Input carries everything a phase agent may need. Transcript is always
// present; Diagrams and Requirements are set only for the document and
// reviewer agents, and Document only for the reviewer.
type Input struct {
	SessionID    string
	Title        string
	Transcript   []*models.Message
	Diagrams     string
	Requirements string
	Document     string
}

// Artifact is the output of one agent run. Notes carry non-fatal problems,
// such as diagram sections the model failed to produce.
type Artifact struct {
	Phase   models.Phase `json:"phase"`
	Content string       `json:"content"`
	Notes   []string     `json:"notes,omitempty"`
}

// Agent produces an artifact from its input. Implementations must honor
// context cancellation and must not share mutable state between runs.
type Agent interface {
	Phase() models.Phase
	Run(ctx context.Context, input Input) (*Artifact, error)
}

// Registry resolves agents by phase.
type Registry struct {
	agents map[models.Phase]Agent
}

// NewRegistry builds a registry from the given agents.
func NewRegistry(agents ...Agent) *Registry {
	registry := &Registry{agents: make(map[models.Phase]Agent, len(agents))}
	for _, agent := range agents {
		registry.agents[agent.Phase()] = agent
	}

	return registry
}

// Get returns the agent registered for the phase.
func (r *Registry) Get(phase models.Phase) (Agent, error) {
	agent, ok := r.agents[phase]
	if !ok {
		return nil, fmt.Errorf("no agent registered for phase %q", phase)
	}

	return agent, nil
}

//go:embed prompts.yaml
var promptsYAML []byte

type promptConfig struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptSet map[string]promptConfig

func loadPrompts() (promptSet, error) {
	var prompts promptSet

	err := yaml.Unmarshal(promptsYAML, &prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent prompts: %w", err)
	}

	return prompts, nil
}

func (p promptSet) render(name string, vars map[string]any) (system, user string, err error) {
	config, ok := p[name]
	if !ok {
		return "", "", fmt.Errorf("prompt %q not found", name)
	}

	system, err = template.Render(config.System, vars)
	if err != nil {
		return "", "", fmt.Errorf("failed to render %s system prompt: %w", name, err)
	}

	user, err = template.Render(config.User, vars)
	if err != nil {
		return "", "", fmt.Errorf("failed to render %s user prompt: %w", name, err)
	}

	return system, user, nil
}

// conversationText flattens a transcript into role-prefixed plain text.
func conversationText(transcript []*models.Message) string {
	var sb strings.Builder

	for _, msg := range transcript {
		role := "User"

		switch msg.Role {
		case models.RoleAssistant:
			role = "Assistant"
		case models.RoleSystem:
			role = "System"
		case models.RoleUser:
		}

		sb.WriteString(fmt.Sprintf("%s: %s\n\n", role, msg.Content))
	}

	return sb.String()
}

func complete(ctx context.Context, client llm.Client, system, user string) (string, error) {
	content, err := client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.SystemMessage(system),
			llm.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", llm.ErrEmptyCompletion
	}

	return content, nil
}
