package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// OpenAIClient implements Client on the official OpenAI Go SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model. An empty
// model falls back to DefaultModel.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete sends the prompt through the Responses API and returns the output
// text. Messages are flattened into a single input with role prefixes.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	var input strings.Builder

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			input.WriteString(fmt.Sprintf("System: %s\n\n", msg.Content))
		case RoleAssistant:
			input.WriteString(fmt.Sprintf("Assistant: %s\n\n", msg.Content))
		case RoleUser:
			input.WriteString(msg.Content)
			input.WriteString("\n\n")
		}
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input.String())},
	}

	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	content := resp.OutputText()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}
