package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/template"
)

// ErrArtifactNotReady indicates the requested artifact's phase has not
// produced output yet, so there is nothing to chat about.
var ErrArtifactNotReady = errors.New("artifact not ready")

// ChatAgentName is the persona answering artifact chat turns.
const ChatAgentName = "Agent Brown"

const (
	chatHistoryKeyPrefix = "chatback:artifactchat:"
	chatHistoryTTL       = 30 * 24 * time.Hour
	chatContextTokens    = 2000
)

// ChatTurn is one turn of a document-embedded chat.
type ChatTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatResult is the reply to one artifact chat turn, with the full history
// including that turn.
type ChatResult struct {
	Reply   string     `json:"reply"`
	History []ChatTurn `json:"history"`
}

// ArtifactReader reads back a generated artifact by its stored path.
type ArtifactReader interface {
	Read(path string) (string, error)
}

const chatSystemPrompt = `You are {{.AgentName}}, a senior reviewer answering questions about a generated project artifact.
The artifact below was produced from a stakeholder interview for the project "{{.Title}}".
Answer strictly from the artifact and the interview context; say so when the artifact does not cover a question.

## Artifact

{{.Artifact}}
{{if .Context}}
## Recent interview context

{{.Context}}
{{end}}`

// ArtifactChat is the document-embedded chat over a generated artifact. The
// history lives in the key-value store keyed by session and phase, expiring
// with the session-data retention window; the phase result rows decide which
// artifacts are open for chat.
type ArtifactChat struct {
	persistence persistence.Persistence
	store       kv.Store
	reader      ArtifactReader
	memory      *memory.Memory
	client      llm.Client
	logger      *slog.Logger
}

// NewArtifactChat builds the chat service over the given artifact reader.
func NewArtifactChat(
	p persistence.Persistence,
	store kv.Store,
	reader ArtifactReader,
	mem *memory.Memory,
	client llm.Client,
	logger *slog.Logger,
) *ArtifactChat {
	return &ArtifactChat{
		persistence: p,
		store:       store,
		reader:      reader,
		memory:      mem,
		client:      client,
		logger:      logger.With("module", "artifactchat"),
	}
}

// Chat answers one user question about the session's artifact for the given
// phase and appends both turns to the stored history.
func (a *ArtifactChat) Chat(ctx context.Context, sessionID string, phase models.Phase, userText string) (*ChatResult, error) {
	session, err := a.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	artifact, err := a.artifact(ctx, sessionID, phase)
	if err != nil {
		return nil, err
	}

	history, err := a.history(ctx, sessionID, phase)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to load chat history", "session_id", sessionID, "phase", phase, "error", err)

		history = nil
	}

	system, err := template.Render(chatSystemPrompt, map[string]any{
		"AgentName": ChatAgentName,
		"Title":     session.Title,
		"Artifact":  artifact,
		"Context":   a.interviewContext(ctx, sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render chat prompt: %w", err)
	}

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.SystemMessage(system))

	for _, turn := range history {
		if turn.Sender == "user" {
			prompt = append(prompt, llm.UserMessage(turn.Text))
		} else {
			prompt = append(prompt, llm.AssistantMessage(turn.Text))
		}
	}

	prompt = append(prompt, llm.UserMessage(userText))

	reply, err := a.client.Complete(ctx, llm.Request{Messages: prompt})
	if err != nil {
		return nil, fmt.Errorf("artifact chat completion failed: %w", err)
	}

	if strings.TrimSpace(reply) == "" {
		return nil, llm.ErrEmptyCompletion
	}

	history = append(history,
		ChatTurn{Sender: "user", Text: userText},
		ChatTurn{Sender: "agent", Text: reply},
	)

	err = a.save(ctx, sessionID, phase, history)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to save chat history", "session_id", sessionID, "phase", phase, "error", err)
	}

	return &ChatResult{Reply: reply, History: history}, nil
}

// History returns the stored chat turns for the session's artifact, oldest
// first. A session with no chat yet yields an empty history.
func (a *ArtifactChat) History(ctx context.Context, sessionID string, phase models.Phase) ([]ChatTurn, error) {
	_, err := a.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return a.history(ctx, sessionID, phase)
}

// Clear removes the stored chat history for the session's artifact.
func (a *ArtifactChat) Clear(ctx context.Context, sessionID string, phase models.Phase) error {
	_, err := a.session(ctx, sessionID)
	if err != nil {
		return err
	}

	return a.store.Delete(ctx, chatHistoryKey(sessionID, phase))
}

func (a *ArtifactChat) session(ctx context.Context, sessionID string) (*models.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	return a.persistence.Sessions().GetByID(ctx, sessionID)
}

// artifact resolves the phase's artifact content. Phases that never ran,
// were skipped, or failed have nothing to chat about.
func (a *ArtifactChat) artifact(ctx context.Context, sessionID string, phase models.Phase) (string, error) {
	result, err := a.persistence.PhaseResults().Get(ctx, sessionID, phase)
	if err != nil {
		if errors.Is(err, persistence.ErrPhaseResultNotFound) {
			return "", ErrArtifactNotReady
		}

		return "", err
	}

	if result.Status != models.PhaseStatusDone {
		return "", ErrArtifactNotReady
	}

	if result.ArtifactPath != "" {
		content, err := a.reader.Read(result.ArtifactPath)
		if err != nil {
			return "", fmt.Errorf("failed to load artifact: %w", err)
		}

		return content, nil
	}

	if result.Artifact == "" {
		return "", ErrArtifactNotReady
	}

	return result.Artifact, nil
}

// interviewContext returns a token-bounded tail of the interview transcript
// so the chat persona knows what was discussed. Failures degrade to an
// artifact-only prompt.
func (a *ArtifactChat) interviewContext(ctx context.Context, sessionID string) string {
	recent, err := a.memory.Recent(ctx, sessionID, chatContextTokens)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to load interview context", "session_id", sessionID, "error", err)

		return ""
	}

	var sb strings.Builder

	for _, msg := range recent {
		sb.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
	}

	return sb.String()
}

func (a *ArtifactChat) history(ctx context.Context, sessionID string, phase models.Phase) ([]ChatTurn, error) {
	raw, err := a.store.Get(ctx, chatHistoryKey(sessionID, phase))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var history []ChatTurn

	err = json.Unmarshal([]byte(raw), &history)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}

	return history, nil
}

func (a *ArtifactChat) save(ctx context.Context, sessionID string, phase models.Phase, history []ChatTurn) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}

	return a.store.Set(ctx, chatHistoryKey(sessionID, phase), string(raw), chatHistoryTTL)
}

func chatHistoryKey(sessionID string, phase models.Phase) string {
	return fmt.Sprintf("%s%s:%s", chatHistoryKeyPrefix, sessionID, phase)
}
