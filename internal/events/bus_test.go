package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 0)
	defer cleanup()

	instance := types.NewID()
	require.NoError(t, bus.Publish(ctx, Event{
		Type:       EventNodeCompleted,
		InstanceID: instance,
		Node:       "generate_quests",
	}))

	select {
	case got := <-ch:
		assert.Equal(t, EventNodeCompleted, got.Type)
		assert.Equal(t, instance, got.InstanceID)
		assert.False(t, got.Timestamp.IsZero(), "bus stamps missing timestamps")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFilterByInstanceAndType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	wanted := types.NewID()
	other := types.NewID()

	ch, cleanup := bus.Subscribe(ctx, Filter{
		Types:      []EventType{EventWorkflowDone},
		InstanceID: wanted,
	}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventWorkflowDone, InstanceID: other}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventNodeStarted, InstanceID: wanted}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventWorkflowDone, InstanceID: wanted}))

	select {
	case got := <-ch:
		assert.Equal(t, EventWorkflowDone, got.Type)
		assert.Equal(t, wanted, got.InstanceID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	select {
	case unexpected := <-ch:
		t.Fatalf("received event that should have been filtered: %+v", unexpected)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	// Buffer of 1 and no reader: second publish must drop, not block.
	_, cleanup := bus.Subscribe(ctx, Filter{}, 1)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = bus.Publish(ctx, Event{Type: EventNodeCompleted, InstanceID: types.NewID()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "close is idempotent")

	err := bus.Publish(context.Background(), Event{Type: EventWorkflowDone})
	assert.Error(t, err)
	assert.Equal(t, 0, bus.SubscriberCount())
}
