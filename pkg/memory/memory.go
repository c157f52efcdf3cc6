// Package memory maintains each session's conversation transcript: durable
// appends, token-budgeted recall for prompt construction, and a key-value
// cache of the recent window so hot sessions avoid a repository read.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

const (
	recentCacheKeyPrefix = "chatback:recent:"
	recentCacheTTL       = 24 * time.Hour
	recentCacheSize      = 50
)

// Memory is the conversational memory for all sessions. The repository is
// the source of truth; the cache only accelerates Recent.
type Memory struct {
	messages  persistence.MessageRepository
	cache     kv.Store
	estimator *TokenEstimator
	logger    *slog.Logger
}

// NewMemory wires a Memory over the given repository and cache. The cache may
// be nil, in which case every read goes to the repository.
func NewMemory(messages persistence.MessageRepository, cache kv.Store, logger *slog.Logger) *Memory {
	return &Memory{
		messages:  messages,
		cache:     cache,
		estimator: NewTokenEstimator(),
		logger:    logger.With("module", "memory"),
	}
}

// Append durably stores one turn. The repository write completes before this
// returns, so an acknowledged turn survives a crash. Cache refresh failures
// are logged and swallowed.
func (m *Memory) Append(ctx context.Context, message *models.Message) error {
	err := m.messages.Append(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	m.refreshCache(ctx, message.SessionID)

	return nil
}

// History returns the session's full transcript, oldest first.
func (m *Memory) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return m.messages.ListBySession(ctx, sessionID)
}

// Recent returns the most recent whole turns that fit within maxTokens,
// oldest first. Older turns are dropped first. For a non-empty transcript the
// result always contains at least the latest turn, even when that turn alone
// exceeds the budget.
func (m *Memory) Recent(ctx context.Context, sessionID string, maxTokens int) ([]*models.Message, error) {
	transcript, err := m.cached(ctx, sessionID)
	if err != nil {
		transcript, err = m.messages.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transcript: %w", err)
		}
	}

	if len(transcript) == 0 {
		return transcript, nil
	}

	start := len(transcript) - 1
	budget := m.estimator.Count(transcript[start].Content)

	for i := start - 1; i >= 0; i-- {
		cost := m.estimator.Count(transcript[i].Content)
		if budget+cost > maxTokens {
			break
		}

		budget += cost
		start = i
	}

	return transcript[start:], nil
}

// Clear removes the session's transcript and its cached window.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	err := m.messages.DeleteBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}

	if m.cache != nil {
		_ = m.cache.Delete(ctx, recentCacheKey(sessionID))
	}

	return nil
}

func (m *Memory) cached(ctx context.Context, sessionID string) ([]*models.Message, error) {
	if m.cache == nil {
		return nil, kv.ErrKeyNotFound
	}

	raw, err := m.cache.Get(ctx, recentCacheKey(sessionID))
	if err != nil {
		return nil, err
	}

	var transcript []*models.Message

	err = json.Unmarshal([]byte(raw), &transcript)
	if err != nil {
		return nil, err
	}

	return transcript, nil
}

func (m *Memory) refreshCache(ctx context.Context, sessionID string) {
	if m.cache == nil {
		return
	}

	transcript, err := m.messages.ListBySession(ctx, sessionID)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to refresh recent cache", "session_id", sessionID, "error", err)

		return
	}

	if len(transcript) > recentCacheSize {
		transcript = transcript[len(transcript)-recentCacheSize:]
	}

	raw, err := json.Marshal(transcript)
	if err != nil {
		return
	}

	err = m.cache.Set(ctx, recentCacheKey(sessionID), string(raw), recentCacheTTL)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to write recent cache", "session_id", sessionID, "error", err)
	}
}

func recentCacheKey(sessionID string) string {
	return recentCacheKeyPrefix + sessionID
}
