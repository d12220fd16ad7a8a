package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/smartspend/smartspend/internal/event_bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportAt(day int) RunReport {
	at := time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
	return RunReport{StartedAt: at, FinishedAt: at}
}

func TestRunHistory_KeepsMostRecentReports(t *testing.T) {
	// given
	history := NewRunHistory(3)

	// when
	for day := 1; day <= 5; day++ {
		history.Add(reportAt(day))
	}

	// then
	recent := history.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, reportAt(5), recent[0])
	assert.Equal(t, reportAt(4), recent[1])
	assert.Equal(t, reportAt(3), recent[2])
}

func TestRunHistory_RecordsPublishedReports(t *testing.T) {
	bus := event_bus.NewEventBus()
	history := NewRunHistory(10)
	unsubscribe := history.Subscribe(bus)

	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), event_bus.RecurringRunCompleted, reportAt(1))))
	unsubscribe()
	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), event_bus.RecurringRunCompleted, reportAt(2))))

	assert.Equal(t, []RunReport{reportAt(1)}, history.Recent())
}

func TestRunHistory_EmptyIsNotNil(t *testing.T) {
	assert.NotNil(t, NewRunHistory(0).Recent())
}
