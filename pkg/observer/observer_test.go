package observer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/insight/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestMulti_OrderAndPanicContainment(t *testing.T) {
	var calls []string

	multi := NewMulti(slog.Default(),
		Func(func(context.Context, events.Event) { calls = append(calls, "first") }),
		Func(func(context.Context, events.Event) { panic("broken sink") }),
		nil,
		Func(func(context.Context, events.Event) { calls = append(calls, "third") }),
	)

	event := events.NodeStarted{BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, "exec-1"), NodeID: "router"}

	assert.NotPanics(t, func() {
		multi.Observe(context.Background(), event)
	})
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestLogging_Observe(t *testing.T) {
	var buf bytes.Buffer

	logging := NewLogging(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logging.Observe(context.Background(), events.NodeFailed{
		BaseEvent: events.NewBaseEvent(events.NodeFailedEvent, "exec-2"),
		NodeID:    "sql_execution",
		Error:     "timeout",
	})

	out := buf.String()
	assert.Contains(t, out, "Node failed")
	assert.Contains(t, out, "execution_id=exec-2")
	assert.Contains(t, out, "node_id=sql_execution")
	assert.Contains(t, out, "error=timeout")
}
