// Package observer delivers workflow lifecycle events to progress sinks.
package observer

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/events"
)

// Observer receives lifecycle events synchronously, in emission order. Implementations must not block
// for long; the engine waits for Observe to return.
type Observer interface {
	Observe(ctx context.Context, event events.Event)
}

// Func adapts a function to Observer.
type Func func(ctx context.Context, event events.Event)

func (f Func) Observe(ctx context.Context, event events.Event) {
	f(ctx, event)
}

// Multi fans events out to its observers in registration order. A panicking observer is logged
// and skipped; the remaining observers still receive the event.
type Multi struct {
	observers []Observer
	logger    *slog.Logger
}

func NewMulti(logger *slog.Logger, observers ...Observer) *Multi {
	m := &Multi{logger: logger.With("module", "observer")}

	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}

	return m
}

func (m *Multi) Observe(ctx context.Context, event events.Event) {
	for _, o := range m.observers {
		m.deliver(ctx, o, event)
	}
}

func (m *Multi) deliver(ctx context.Context, o Observer, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "Observer panicked",
				"event_type", event.GetType(),
				"execution_id", event.GetExecutionID(),
				"panic", r)
		}
	}()

	o.Observe(ctx, event)
}
