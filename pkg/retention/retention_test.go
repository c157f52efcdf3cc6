package retention

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatback/chatback/pkg/models"
	filepersistence "github.com/chatback/chatback/pkg/persistence/file"
)

func deletedSession(t *testing.T, p *filepersistence.Persistence) *models.Session {
	t.Helper()

	ctx := context.Background()
	session := &models.Session{UserID: "u", Title: "t", State: models.SessionStateCompleted}
	require.NoError(t, p.Sessions().Save(ctx, session))
	require.NoError(t, p.Sessions().Delete(ctx, session.ID))

	return session
}

func TestSweeper_PurgesExpiredSessions(t *testing.T) {
	p := filepersistence.NewPersistence(t.TempDir())
	deletedSession(t, p)

	sweeper := NewSweeper(p, time.Nanosecond, slog.Default())

	time.Sleep(5 * time.Millisecond)

	purged, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestSweeper_KeepsSessionsInsideWindow(t *testing.T) {
	p := filepersistence.NewPersistence(t.TempDir())
	deletedSession(t, p)

	sweeper := NewSweeper(p, time.Hour, slog.Default())

	purged, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestSweeper_RejectsInvalidSchedule(t *testing.T) {
	p := filepersistence.NewPersistence(t.TempDir())
	sweeper := NewSweeper(p, time.Hour, slog.Default())

	err := sweeper.Start(context.Background(), "not a cron expression")
	require.Error(t, err)
}

func TestSweeper_StartRunsInitialSweep(t *testing.T) {
	p := filepersistence.NewPersistence(t.TempDir())
	deletedSession(t, p)

	sweeper := NewSweeper(p, time.Nanosecond, slog.Default())

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, sweeper.Start(context.Background(), "@every 1h"))
	defer sweeper.Stop()

	purged, err := p.PurgeDeletedSessions(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, purged, "the initial sweep should have already purged the session")
}

func TestSweeper_DefaultWindow(t *testing.T) {
	p := filepersistence.NewPersistence(t.TempDir())
	sweeper := NewSweeper(p, 0, slog.Default())
	assert.Equal(t, DefaultWindow, sweeper.window)
}
