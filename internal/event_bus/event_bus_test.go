package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEvent EventType = "test.event"

type payload struct {
	Value int
}

func TestPublish_RunsHandlersInSubscriptionOrder(t *testing.T) {
	// given
	bus := NewEventBus()
	var calls []int
	for i := 1; i <= 5; i++ {
		bus.Subscribe(testEvent, func(e Event) error {
			calls = append(calls, i)
			return nil
		})
	}

	// when
	err := bus.Publish(NewEvent(context.Background(), testEvent, nil))

	// then
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestPublish_CollectsErrorsAndRecoversPanics(t *testing.T) {
	// given
	bus := NewEventBus()
	failure := errors.New("handler failed")
	reached := false
	bus.Subscribe(testEvent, func(e Event) error { return failure })
	bus.Subscribe(testEvent, func(e Event) error { panic("boom") })
	bus.Subscribe(testEvent, func(e Event) error {
		reached = true
		return nil
	})

	// when
	err := bus.Publish(NewEvent(context.Background(), testEvent, nil))

	// then
	assert.ErrorIs(t, err, failure)
	assert.ErrorContains(t, err, "panicked")
	assert.True(t, reached)
}

func TestPublish_SkipsHandlersWhenContextDone(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(testEvent, func(e Event) error {
		called = true
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(NewEvent(ctx, testEvent, nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSubscribeTyped(t *testing.T) {
	// given
	bus := NewEventBus()
	var received []int
	SubscribeTyped(bus, testEvent, func(e EventT[payload]) error {
		received = append(received, e.Data.Value)
		return nil
	})

	// when
	require.NoError(t, bus.Publish(NewEvent(context.Background(), testEvent, payload{Value: 7})))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), testEvent, "not a payload")))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), testEvent, nil)))

	// then
	assert.Equal(t, []int{7}, received)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	unsubscribe := bus.Subscribe(testEvent, func(e Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.Publish(NewEvent(context.Background(), testEvent, nil)))
	unsubscribe()
	require.NoError(t, bus.Publish(NewEvent(context.Background(), testEvent, nil)))

	assert.Equal(t, 1, calls)
}
