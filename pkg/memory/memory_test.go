package memory

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/models"
	filepersistence "github.com/chatback/chatback/pkg/persistence/file"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()

	p := filepersistence.NewPersistence(t.TempDir())

	return NewMemory(p.Messages(), kv.NewMemoryStore(), slog.Default())
}

func appendTurns(t *testing.T, m *Memory, sessionID string, contents ...string) {
	t.Helper()

	for _, content := range contents {
		err := m.Append(context.Background(), &models.Message{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   content,
		})
		require.NoError(t, err)
	}
}

func TestMemory_AppendAndHistory(t *testing.T) {
	m := newTestMemory(t)
	appendTurns(t, m, "s1", "first", "second")

	history, err := m.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
}

func TestMemory_RecentDropsOldestFirst(t *testing.T) {
	m := newTestMemory(t)

	// Each turn is ~100 tokens, so a 250 token budget fits two whole turns.
	big := strings.Repeat("word ", 100)
	appendTurns(t, m, "s1", "oldest "+big, "middle "+big, "newest "+big)

	recent, err := m.Recent(context.Background(), "s1", 250)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, strings.HasPrefix(recent[0].Content, "middle"))
	assert.True(t, strings.HasPrefix(recent[1].Content, "newest"))
}

func TestMemory_RecentNeverEmptyForNonEmptyHistory(t *testing.T) {
	m := newTestMemory(t)
	appendTurns(t, m, "s1", strings.Repeat("word ", 500))

	recent, err := m.Recent(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestMemory_RecentEmptyHistory(t *testing.T) {
	m := newTestMemory(t)

	recent, err := m.Recent(context.Background(), "s1", 100)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMemory_Clear(t *testing.T) {
	m := newTestMemory(t)
	appendTurns(t, m, "s1", "first")

	require.NoError(t, m.Clear(context.Background(), "s1"))

	history, err := m.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	recent, err := m.Recent(context.Background(), "s1", 100)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestTokenEstimator_Count(t *testing.T) {
	e := NewTokenEstimator()

	assert.Zero(t, e.Count(""))
	assert.Positive(t, e.Count("hello world"))

	// Fallback path without a codec.
	fallback := &TokenEstimator{}
	assert.Equal(t, 3, fallback.Count("twelve chars"))
}
