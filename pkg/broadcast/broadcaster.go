// Package broadcast pushes progress frames to live subscribers of an execution.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukex/insight/pkg/events"
)

const DefaultBuffer = 32

// Broadcaster is an observer that fans progress frames out to the subscribers registered for the
// event's execution. Delivery never blocks the engine: a frame that does not fit a subscriber's
// buffer is dropped for that subscriber.
type Broadcaster struct {
	logger      *slog.Logger
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
}

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:      logger.With("module", "progress_broadcaster"),
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber for executionID. The returned subscription receives frames until
// the execution ends or Close is called.
func (b *Broadcaster) Subscribe(executionID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	sub := &Subscription{
		executionID: executionID,
		ch:          make(chan events.Progress, buffer),
		broadcaster: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[executionID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.subscribers[executionID] = subs
	}

	subs[sub] = struct{}{}

	return sub
}

func (b *Broadcaster) Observe(ctx context.Context, event events.Event) {
	b.Publish(ctx, events.ToProgress(event))
}

// Publish delivers frame to every subscriber of its execution. A terminal frame closes and removes
// them all.
func (b *Broadcaster) Publish(ctx context.Context, frame events.Progress) {
	if frame.Terminal() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for sub := range b.subscribers[frame.ExecutionID] {
			sub.send(frame)
			sub.closeLocked()
		}

		delete(b.subscribers, frame.ExecutionID)

		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[frame.ExecutionID] {
		if !sub.send(frame) {
			b.logger.DebugContext(ctx, "Subscriber buffer full, frame dropped",
				"execution_id", frame.ExecutionID,
				"event_type", frame.Type)
		}
	}
}

// Subscribers returns how many live subscribers executionID has.
func (b *Broadcaster) Subscribers(executionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[executionID])
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[sub.executionID]
	if !ok {
		return
	}

	if _, ok := subs[sub]; !ok {
		return
	}

	sub.closeLocked()
	delete(subs, sub)

	if len(subs) == 0 {
		delete(b.subscribers, sub.executionID)
	}
}

// Subscription is one live listener for an execution.
type Subscription struct {
	executionID string
	ch          chan events.Progress
	broadcaster *Broadcaster
	closed      bool
	dropped     atomic.Int64
}

// Events yields frames in emission order; it is closed after the terminal frame or Close.
func (s *Subscription) Events() <-chan events.Progress {
	return s.ch
}

func (s *Subscription) ExecutionID() string {
	return s.executionID
}

// Dropped reports how many frames did not fit the buffer.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.broadcaster.remove(s)
}

// send and closeLocked run with the broadcaster lock held, so a channel is never written after close.
func (s *Subscription) send(frame events.Progress) bool {
	if s.closed {
		return false
	}

	select {
	case s.ch <- frame:
		return true
	default:
		s.dropped.Add(1)

		return false
	}
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}
