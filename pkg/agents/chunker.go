package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/memory"
)

// DefaultChunkTokens is the context budget one summarization window may use.
const DefaultChunkTokens = 6000

// maxReducePasses bounds the summarize-the-summaries loop so a pathological
// input cannot recurse forever.
const maxReducePasses = 3

// Chunker condenses long conversations hierarchically: split into bounded
// windows, summarize each window, then summarize the summaries until the
// result fits the budget. Short inputs pass through untouched.
type Chunker struct {
	client      llm.Client
	prompts     promptSet
	estimator   *memory.TokenEstimator
	chunkTokens int
}

// NewChunker builds a chunker over the given client. A non-positive
// chunkTokens falls back to DefaultChunkTokens.
func NewChunker(client llm.Client, prompts promptSet, chunkTokens int) *Chunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}

	return &Chunker{
		client:      client,
		prompts:     prompts,
		estimator:   memory.NewTokenEstimator(),
		chunkTokens: chunkTokens,
	}
}

// Condense returns text unchanged when it fits the chunk budget, otherwise
// the hierarchical summary.
func (c *Chunker) Condense(ctx context.Context, text string) (string, error) {
	if c.estimator.Count(text) <= c.chunkTokens {
		return text, nil
	}

	current := text

	for pass := 0; pass < maxReducePasses; pass++ {
		chunks := c.split(current)

		summaries := make([]string, 0, len(chunks))

		for _, chunk := range chunks {
			summary, err := c.summarize(ctx, chunk)
			if err != nil {
				return "", fmt.Errorf("failed to summarize chunk: %w", err)
			}

			summaries = append(summaries, summary)
		}

		current = strings.Join(summaries, "\n\n")

		if c.estimator.Count(current) <= c.chunkTokens {
			return current, nil
		}
	}

	return current, nil
}

func (c *Chunker) summarize(ctx context.Context, chunk string) (string, error) {
	system, user, err := c.prompts.render("summarize", map[string]any{
		"conversation": chunk,
	})
	if err != nil {
		return "", err
	}

	return complete(ctx, c.client, system, user)
}

// split breaks text into windows at paragraph boundaries, never splitting a
// paragraph unless a single paragraph alone exceeds the budget.
func (c *Chunker) split(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	chunks := make([]string, 0)

	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, paragraph := range paragraphs {
		cost := c.estimator.Count(paragraph)

		if currentTokens+cost > c.chunkTokens {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}

		current.WriteString(paragraph)
		currentTokens += cost
	}

	flush()

	return chunks
}
