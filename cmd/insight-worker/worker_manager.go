package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/insight/pkg/eventbus"
	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/services"
	"golang.org/x/sync/semaphore"
)

// WorkerManager answers query.requested events from the bus, running up to maxConcurrent
// executions at once, and publishes query.answered or query.failed for each.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	queries  *services.Query
	eventBus eventbus.EventBus
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

func NewWorkerManager(
	id string,
	queries *services.Query,
	eventBus eventbus.EventBus,
	maxConcurrent int64,
	logger *slog.Logger,
) *WorkerManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "insight-worker", "worker_id", id),
		queries:  queries,
		eventBus: eventBus,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// Start registers the request handler and begins consuming.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.QueryRequestedEvent, w.handleQueryRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Wait blocks until in-flight executions finish.
func (w *WorkerManager) Wait() {
	w.wg.Wait()
}

// handleQueryRequested waits for a free slot, then runs the execution in its own goroutine so the
// consumer keeps reading while executions are suspended on backend calls.
func (w *WorkerManager) handleQueryRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.QueryRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for QueryRequested")

		return nil
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer w.sem.Release(1)

		w.execute(context.WithoutCancel(ctx), requested)
	}()

	return nil
}

func (w *WorkerManager) execute(ctx context.Context, requested *events.QueryRequested) {
	executionID := requested.ExecutionID
	if executionID == "" {
		executionID = requested.ID
	}

	logger := w.logger.With("execution_id", executionID, "event_id", requested.ID)
	logger.InfoContext(ctx, "Processing query requested event")

	resp, err := w.queries.Execute(ctx, executionID, requested.Request)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute query", "error", err)

		failed := events.QueryFailed{
			BaseEvent: events.NewBaseEvent(events.QueryFailedEvent, executionID),
			Error:     err.Error(),
		}
		failed.WorkerID = w.id

		if publishErr := w.eventBus.Publish(ctx, executionID, failed); publishErr != nil {
			logger.ErrorContext(ctx, "Failed to publish query failed event", "error", publishErr)
		}

		return
	}

	answered := events.QueryAnswered{
		BaseEvent: events.NewBaseEvent(events.QueryAnsweredEvent, executionID),
		Response:  resp,
	}
	answered.WorkerID = w.id

	if err := w.eventBus.Publish(ctx, executionID, answered); err != nil {
		logger.ErrorContext(ctx, "Failed to publish query answered event", "error", err)
	}
}
