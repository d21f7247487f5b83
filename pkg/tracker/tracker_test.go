package tracker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(base events.BaseEvent, ts time.Time) events.BaseEvent {
	base.Timestamp = ts

	return base
}

func started(id string, ts time.Time) events.ExecutionStarted {
	return events.ExecutionStarted{
		BaseEvent: at(events.NewBaseEvent(events.ExecutionStartedEvent, id), ts),
		Query:     "total sales",
	}
}

func nodeStarted(id, node string, retry int, ts time.Time) events.NodeStarted {
	return events.NodeStarted{
		BaseEvent:  at(events.NewBaseEvent(events.NodeStartedEvent, id), ts),
		NodeID:     node,
		NodeType:   models.NodeTypeGeneration,
		RetryCount: retry,
	}
}

func nodeCompleted(id, node string, ts time.Time) events.NodeCompleted {
	return events.NodeCompleted{
		BaseEvent:     at(events.NewBaseEvent(events.NodeCompletedEvent, id), ts),
		NodeID:        node,
		NodeType:      models.NodeTypeGeneration,
		OutputSummary: "answer=42 chars",
		DurationMs:    120,
	}
}

func completed(id string, ts time.Time) events.ExecutionCompleted {
	return events.ExecutionCompleted{
		BaseEvent:    at(events.NewBaseEvent(events.ExecutionCompletedEvent, id), ts),
		QualityScore: 9,
	}
}

func TestTracker_SuccessfulExecutionIsRetained(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tracker := New(NewRegistry(slog.Default()), slog.Default())

	tracker.Observe(ctx, started("exec-1", start))
	tracker.Observe(ctx, nodeStarted("exec-1", "router", 0, start))

	record, err := tracker.Registry().Get("exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, record.Status)

	detail, ok := record.Lookup("router")
	require.True(t, ok)
	assert.Equal(t, models.NodeStatusRunning, detail.Status)

	tracker.Observe(ctx, nodeCompleted("exec-1", "router", start.Add(120*time.Millisecond)))
	tracker.Observe(ctx, nodeStarted("exec-1", "synthesis", 0, start.Add(time.Second)))
	tracker.Observe(ctx, nodeCompleted("exec-1", "synthesis", start.Add(2*time.Second)))
	tracker.Observe(ctx, nodeStarted("exec-1", "synthesis", 1, start.Add(3*time.Second)))
	tracker.Observe(ctx, nodeCompleted("exec-1", "synthesis", start.Add(4*time.Second)))
	tracker.Observe(ctx, completed("exec-1", start.Add(5*time.Second)))

	record, err = tracker.Registry().Get("exec-1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, record.Status)
	assert.Equal(t, 5*time.Second, record.Duration())

	nodes := record.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "router", nodes[0].NodeID)
	assert.Equal(t, models.NodeStatusCompleted, nodes[0].Status)
	assert.Equal(t, 120*time.Millisecond, nodes[0].Duration)

	assert.Equal(t, "synthesis", nodes[1].NodeID)
	assert.Equal(t, 2, nodes[1].Invocations)
	assert.Equal(t, 1, nodes[1].RetryCountAtTime)
	assert.Equal(t, start.Add(4*time.Second), nodes[1].EndTime)
}

func TestTracker_FailedExecutionIsPurged(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	tracker := New(NewRegistry(slog.Default()), slog.Default())

	tracker.Observe(ctx, started("exec-2", now))
	tracker.Observe(ctx, nodeStarted("exec-2", "sql_execution", 0, now))
	tracker.Observe(ctx, events.NodeFailed{
		BaseEvent: events.NewBaseEvent(events.NodeFailedEvent, "exec-2"),
		NodeID:    "sql_execution",
		Error:     "connection refused",
	})

	record, err := tracker.Registry().Get("exec-2")
	require.NoError(t, err)

	detail, ok := record.Lookup("sql_execution")
	require.True(t, ok)
	assert.Equal(t, models.NodeStatusError, detail.Status)
	assert.Equal(t, "connection refused", detail.ErrorDetail)

	tracker.Observe(ctx, events.ExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.ExecutionFailedEvent, "exec-2"),
		Error:     "connection refused",
	})

	_, err = tracker.Registry().Get("exec-2")
	assert.True(t, errors.Is(err, ErrExecutionNotFound))
}

func TestTracker_IgnoresUntrackedExecutions(t *testing.T) {
	tracker := New(NewRegistry(slog.Default()), slog.Default())

	tracker.Observe(context.Background(), nodeStarted("ghost", "router", 0, time.Now()))

	assert.Zero(t, tracker.Registry().Len())
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Create("exec-3", "q", time.Now())

	record, err := registry.Get("exec-3")
	require.NoError(t, err)

	record.Status = models.ExecutionStatusError
	record.Node("router", models.NodeTypeClassifier)

	stored, err := registry.Get("exec-3")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	assert.Empty(t, stored.Nodes())
}

func TestRegistry_ListOrdersByStart(t *testing.T) {
	registry := NewRegistry(slog.Default())
	base := time.Now()

	registry.Create("b", "q", base.Add(time.Second))
	registry.Create("a", "q", base)
	registry.Create("c", "q", base.Add(2*time.Second))

	var ids []string
	for _, record := range registry.List() {
		ids = append(ids, record.ExecutionID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRegistry_Evict(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	registry := NewRegistry(slog.Default(), WithClock(func() time.Time { return now }))

	finish := func(id string, end time.Time) {
		registry.Create(id, "q", end.Add(-time.Minute))
		registry.Update(id, func(record *models.ExecutionRecord) {
			record.Status = models.ExecutionStatusCompleted
			record.EndTime = end
		})
	}

	finish("old", now.Add(-2*time.Hour))
	finish("recent", now.Add(-10*time.Minute))
	registry.Create("running", "q", now.Add(-3*time.Hour))

	assert.Equal(t, 1, registry.Evict(time.Hour))

	_, err := registry.Get("old")
	assert.ErrorIs(t, err, ErrExecutionNotFound)

	_, err = registry.Get("recent")
	assert.NoError(t, err)

	_, err = registry.Get("running")
	assert.NoError(t, err)
}

func TestRegistry_StartEviction(t *testing.T) {
	registry := NewRegistry(slog.Default())

	assert.Error(t, registry.StartEviction("not a schedule", time.Hour))
	assert.Error(t, registry.StartEviction(DefaultEvictionSchedule, 0))

	require.NoError(t, registry.StartEviction(DefaultEvictionSchedule, DefaultRetention))
	registry.Stop()
	registry.Stop()
}
