// Package redissink publishes progress frames on Redis pub/sub so processes other than the one
// running an execution can stream its progress.
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/insight/pkg/events"
	redis "github.com/redis/go-redis/v9"
)

const channelPrefix = "insight:progress:"

// Channel names the pub/sub channel of one execution.
func Channel(executionID string) string {
	return channelPrefix + executionID
}

// Publisher is the subset of redis.UniversalClient the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NewClient connects to the Redis server described by a redis:// URL.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Sink is an observer that publishes every lifecycle event as a JSON progress frame.
type Sink struct {
	client Publisher
	logger *slog.Logger
}

func New(client Publisher, logger *slog.Logger) *Sink {
	return &Sink{
		client: client,
		logger: logger.With("module", "redis_progress_sink"),
	}
}

func (s *Sink) Observe(ctx context.Context, event events.Event) {
	frame := events.ToProgress(event)

	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode progress frame", "execution_id", frame.ExecutionID, "error", err)

		return
	}

	if err := s.client.Publish(ctx, Channel(frame.ExecutionID), payload).Err(); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish progress frame",
			"execution_id", frame.ExecutionID,
			"event_type", frame.Type,
			"error", err)
	}
}

// Listen subscribes to the progress of executionID. The returned channel closes after the terminal
// frame, when ctx is done, or when the subscription fails.
func Listen(ctx context.Context, client redis.UniversalClient, executionID string) <-chan events.Progress {
	pubsub := client.Subscribe(ctx, Channel(executionID))
	out := make(chan events.Progress)

	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				frame, err := Decode(msg.Payload)
				if err != nil {
					continue
				}

				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}

				if frame.Terminal() {
					return
				}
			}
		}
	}()

	return out
}

func Decode(payload string) (events.Progress, error) {
	var frame events.Progress
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return events.Progress{}, fmt.Errorf("decode progress frame: %w", err)
	}

	return frame, nil
}
