// Package llm defines the completion client contract shared by every phase
// agent, plus the resilience decorator that wraps the concrete provider.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion indicates the provider returned a response with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Role identifies the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the prompt sent to the provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Client produces a text completion for a prompt. Implementations must honor
// context cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	ModelName() string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
