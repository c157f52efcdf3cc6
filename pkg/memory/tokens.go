package memory

import (
	"github.com/tiktoken-go/tokenizer"
)

// TokenEstimator counts prompt tokens for budget decisions.
type TokenEstimator struct {
	codec tokenizer.Codec
}

// NewTokenEstimator builds an estimator using the GPT-4 encoding, which is a
// close enough approximation for every model the engine talks to.
func NewTokenEstimator() *TokenEstimator {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &TokenEstimator{}
	}

	return &TokenEstimator{codec: codec}
}

// Count returns the number of tokens in text. When the codec is unavailable
// it falls back to a character-based estimate (4 chars per token).
func (e *TokenEstimator) Count(text string) int {
	if e.codec == nil {
		return len(text) / 4
	}

	count, err := e.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}

	return count
}
