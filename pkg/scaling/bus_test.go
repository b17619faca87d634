package scaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversExactMatch(t *testing.T) {
	bus := NewEventBus()
	ch, unsub, err := bus.Subscribe("/world/tick", 4)
	require.NoError(t, err)
	t.Cleanup(unsub)

	bus.Publish(Event{Topic: "/world/tick", Payload: 42})

	select {
	case e := <-ch:
		require.Equal(t, "/world/tick", e.Topic)
		require.Equal(t, 42, e.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusSingleLevelWildcard(t *testing.T) {
	bus := NewEventBus()
	ch, unsub, err := bus.Subscribe("/faction/+/trust_changed", 4)
	require.NoError(t, err)
	t.Cleanup(unsub)

	bus.Publish(Event{Topic: "/faction/guards/trust_changed", Payload: "up"})

	select {
	case e := <-ch:
		require.Equal(t, "/faction/guards/trust_changed", e.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusMultiLevelWildcard(t *testing.T) {
	bus := NewEventBus()
	ch, unsub, err := bus.Subscribe("/quest/#", 4)
	require.NoError(t, err)
	t.Cleanup(unsub)

	bus.Publish(Event{Topic: "/quest/generated/npc_1", Payload: nil})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusNonMatchingTopicNotDelivered(t *testing.T) {
	bus := NewEventBus()
	ch, unsub, err := bus.Subscribe("/quest/generated", 4)
	require.NoError(t, err)
	t.Cleanup(unsub)

	bus.Publish(Event{Topic: "/trade/disrupted", Payload: nil})

	select {
	case e := <-ch:
		t.Fatalf("unexpected event delivered: %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBusFanOutToMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	chA, unsubA, err := bus.Subscribe("/world/#", 4)
	require.NoError(t, err)
	t.Cleanup(unsubA)
	chB, unsubB, err := bus.Subscribe("/world/tick", 4)
	require.NoError(t, err)
	t.Cleanup(unsubB)

	bus.Publish(Event{Topic: "/world/tick"})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestEventBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	ch, unsub, err := bus.Subscribe("/world/tick", 4)
	require.NoError(t, err)
	unsub()

	bus.Publish(Event{Topic: "/world/tick"})

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
	require.Equal(t, 0, bus.SubscriberCount())
}
