package redissink

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/insight/pkg/events"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.messages = append(f.messages, published{channel: channel, payload: message.([]byte)})

	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}

	return cmd
}

func TestSink_PublishesProgressFrames(t *testing.T) {
	pub := &fakePublisher{}
	sink := New(pub, slog.Default())

	sink.Observe(context.Background(), events.NodeFailed{
		BaseEvent: events.NewBaseEvent(events.NodeFailedEvent, "exec-1"),
		NodeID:    "chart_render",
		Error:     "timeout",
	})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "insight:progress:exec-1", pub.messages[0].channel)

	frame, err := Decode(string(pub.messages[0].payload))
	require.NoError(t, err)
	assert.Equal(t, events.NodeFailedEvent, frame.Type)
	assert.Equal(t, "chart_render", frame.NodeID)
	assert.Equal(t, "timeout", frame.Error)
	assert.False(t, frame.Terminal())
}

func TestSink_PublishErrorIsContained(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection reset")}
	sink := New(pub, slog.Default())

	assert.NotPanics(t, func() {
		sink.Observe(context.Background(), events.ExecutionCompleted{
			BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, "exec-2"),
		})
	})
	assert.Len(t, pub.messages, 1)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("{")
	assert.Error(t, err)
}
