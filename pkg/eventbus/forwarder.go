package eventbus

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/events"
)

// Forwarder is an observer that republishes lifecycle events on the bus, keyed by execution id, so
// processes other than the one running the engine can follow an execution.
type Forwarder struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func NewForwarder(publisher EventPublisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		logger:    logger.With("module", "event_forwarder"),
	}
}

func (f *Forwarder) Observe(ctx context.Context, event events.Event) {
	if err := f.publisher.Publish(ctx, event.GetExecutionID(), event); err != nil {
		f.logger.WarnContext(ctx, "Failed to forward event",
			"execution_id", event.GetExecutionID(),
			"event_type", event.GetType(),
			"error", err)
	}
}
