package observer

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/events"
)

// Logging writes each lifecycle event to a structured logger.
type Logging struct {
	logger *slog.Logger
}

func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger.With("module", "workflow_events")}
}

func (l *Logging) Observe(ctx context.Context, event events.Event) {
	logger := l.logger.With("execution_id", event.GetExecutionID(), "event_type", event.GetType())

	switch e := event.(type) {
	case events.ExecutionStarted:
		logger.InfoContext(ctx, "Execution started", "datasource_id", e.Datasource.ID)
	case events.NodeStarted:
		logger.DebugContext(ctx, "Node started", "node_id", e.NodeID, "retry_count", e.RetryCount)
	case events.NodeCompleted:
		logger.DebugContext(ctx, "Node completed", "node_id", e.NodeID, "duration_ms", e.DurationMs)
	case events.NodeFailed:
		logger.WarnContext(ctx, "Node failed", "node_id", e.NodeID, "error", e.Error, "duration_ms", e.DurationMs)
	case events.ExecutionCompleted:
		logger.InfoContext(ctx, "Execution completed",
			"duration_ms", e.DurationMs,
			"quality_score", e.QualityScore,
			"retry_count", e.RetryCount,
			"has_chart", e.HasChart)
	case events.ExecutionFailed:
		logger.WarnContext(ctx, "Execution failed", "error", e.Error, "duration_ms", e.DurationMs)
	default:
		logger.DebugContext(ctx, "Event received")
	}
}
