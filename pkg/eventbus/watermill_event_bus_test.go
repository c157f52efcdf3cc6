package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatback/chatback/pkg/channels/gochannel"
	"github.com/chatback/chatback/pkg/eventbus"
	"github.com/chatback/chatback/pkg/events"
	"github.com/chatback/chatback/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.PhaseFinished, 1)

	err := bus.Handle(events.PhaseFinishedEvent, func(_ context.Context, event interface{}) error {
		finished, ok := event.(*events.PhaseFinished)
		require.True(t, ok)
		received <- finished

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "session-1", events.NewPhaseFinished("session-1", models.PhaseDiagram, models.PhaseStatusDone, ""))
	require.NoError(t, err)

	select {
	case finished := <-received:
		assert.Equal(t, "session-1", finished.SessionID)
		assert.Equal(t, models.PhaseDiagram, finished.Phase)
		assert.Equal(t, models.PhaseStatusDone, finished.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan struct{}, 2)

	err := bus.Handle(events.WorkflowStartedEvent, func(_ context.Context, _ interface{}) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type; the message is acked and skipped.
	require.NoError(t, bus.Publish(ctx, "session-1", events.NewInterviewCompleted("session-1", "user-1", "Inventory")))
	require.NoError(t, bus.Publish(ctx, "session-1", events.NewWorkflowStarted("session-1", models.WorkflowFlags{})))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the workflow started event")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
