package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/maestro/pkg/channels/gochannel"
	"github.com/dukex/maestro/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func baseEvent(eventType events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        "evt-1",
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex

	var received *events.NodeCompleted

	require.NoError(t, bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		received = event.(*events.NodeCompleted)

		return nil
	}))

	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "run-1", events.NodeCompleted{
		BaseEvent: baseEvent(events.NodeCompletedEvent, "run-1"),
		NodeID:    "fetch",
		Attempts:  2,
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return received != nil
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "fetch", received.NodeID)
	assert.Equal(t, 2, received.Attempts)
	assert.Equal(t, "run-1", received.RunID)
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex

	var got events.EventType

	require.NoError(t, bus.Handle(events.WorkflowCompletedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		got = event.(*events.WorkflowCompleted).Type

		return nil
	}))

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for this type; it must be acked and dropped.
	require.NoError(t, bus.Publish(t.Context(), "run-1", events.NodeStarted{
		BaseEvent: baseEvent(events.NodeStartedEvent, "run-1"),
		NodeID:    "fetch",
	}))

	require.NoError(t, bus.Publish(t.Context(), "run-1", events.WorkflowCompleted{
		BaseEvent: baseEvent(events.WorkflowCompletedEvent, "run-1"),
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return got == events.WorkflowCompletedEvent
	}, 5*time.Second, 5*time.Millisecond)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
