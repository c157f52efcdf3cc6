package cmd

import (
	"errors"

	"github.com/chatback/chatback/pkg/llm"
)

// NewLLM creates the completion client used by every agent. The client
// retries transient failures with exponential backoff.
func NewLLM(apiKey, model string) (llm.Client, error) {
	if apiKey == "" {
		return nil, errors.New("an API key is required")
	}

	if model == "" {
		model = llm.DefaultModel
	}

	return llm.WithRetry(llm.NewOpenAIClient(apiKey, model), llm.DefaultRetryConfig), nil
}
