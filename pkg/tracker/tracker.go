package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
)

// Tracker is an observer that keeps the Registry in step with lifecycle events.
type Tracker struct {
	registry *Registry
	logger   *slog.Logger
}

func New(registry *Registry, logger *slog.Logger) *Tracker {
	return &Tracker{
		registry: registry,
		logger:   logger.With("module", "execution_tracker"),
	}
}

func (t *Tracker) Registry() *Registry {
	return t.registry
}

func (t *Tracker) Observe(ctx context.Context, event events.Event) {
	executionID := event.GetExecutionID()

	switch e := event.(type) {
	case events.ExecutionStarted:
		t.registry.Create(executionID, e.Query, e.GetTimestamp())

		return
	case events.ExecutionFailed:
		t.registry.Remove(executionID)
		t.logger.DebugContext(ctx, "Purged failed execution", "execution_id", executionID)

		return
	}

	found := t.registry.Update(executionID, func(record *models.ExecutionRecord) {
		apply(record, event)
	})
	if !found {
		t.logger.DebugContext(ctx, "Event for untracked execution",
			"execution_id", executionID,
			"event_type", event.GetType())
	}
}

func apply(record *models.ExecutionRecord, event events.Event) {
	switch e := event.(type) {
	case events.NodeStarted:
		detail := record.Node(e.NodeID, e.NodeType)
		detail.Status = models.NodeStatusRunning
		detail.StartTime = e.GetTimestamp()
		detail.EndTime = time.Time{}
		detail.Duration = 0
		detail.ErrorDetail = ""
		detail.InputSummary = e.InputSummary
		detail.RetryCountAtTime = e.RetryCount
		detail.Invocations++
	case events.NodeCompleted:
		detail := record.Node(e.NodeID, e.NodeType)
		detail.Status = models.NodeStatusCompleted
		detail.EndTime = e.GetTimestamp()
		detail.Duration = time.Duration(e.DurationMs) * time.Millisecond
		detail.OutputSummary = e.OutputSummary
	case events.NodeFailed:
		detail := record.Node(e.NodeID, e.NodeType)
		detail.Status = models.NodeStatusError
		detail.EndTime = e.GetTimestamp()
		detail.Duration = time.Duration(e.DurationMs) * time.Millisecond
		detail.ErrorDetail = e.Error
	case events.ExecutionCompleted:
		record.Status = models.ExecutionStatusCompleted
		record.EndTime = e.GetTimestamp()
	}
}
