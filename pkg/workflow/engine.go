package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/observer"
	"github.com/dukex/insight/pkg/protocol"
)

const DefaultMaxSteps = 32

var (
	ErrNodePanic         = errors.New("node panicked")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// FailSafe is implemented by nodes that provide their own update when they fail, instead of
// marking the execution as errored.
type FailSafe interface {
	FailSafe(state models.WorkflowState, err error) models.Update
}

type Engine struct {
	graph    *Graph
	observer observer.Observer
	logger   *slog.Logger
	maxSteps int
	workerID string
}

type Option func(*Engine)

func WithObserver(o observer.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMaxSteps(steps int) Option {
	return func(e *Engine) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

// WithWorkerID stamps every emitted event with the id of the process running the engine.
func WithWorkerID(id string) Option {
	return func(e *Engine) {
		e.workerID = id
	}
}

func NewEngine(graph *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "workflow_engine")

	return e
}

// Run executes the graph for one query and returns the final state. Node failures are recorded in
// the state; the only returned error is ErrInvalidGraph. Cancelling ctx does not interrupt a run.
func (e *Engine) Run(ctx context.Context, executionID string, query string, datasource models.Datasource) (models.WorkflowState, error) {
	if err := e.graph.Validate(); err != nil {
		return models.WorkflowState{}, err
	}

	ctx = context.WithoutCancel(ctx)
	logger := e.logger.With("execution_id", executionID)
	started := time.Now()

	state := models.NewWorkflowState(query, datasource)

	e.emit(ctx, events.ExecutionStarted{
		BaseEvent:  e.base(events.ExecutionStartedEvent, executionID),
		Query:      query,
		Datasource: state.Datasource,
	})

	traversals := make(map[transition]int)
	current := e.graph.entry

	for steps := 0; current != End; steps++ {
		if steps >= e.maxSteps {
			logger.ErrorContext(ctx, "Step limit exceeded", "max_steps", e.maxSteps, "node_id", current)
			state.Error = fmt.Errorf("%w: %d", ErrStepLimitExceeded, e.maxSteps).Error()

			break
		}

		node, _ := e.graph.Node(current)
		state = e.step(ctx, executionID, node, state)

		next, err := e.graph.next(current, state)
		if err != nil {
			logger.ErrorContext(ctx, "Routing failed", "node_id", current, "error", err)
			state.Error = err.Error()

			break
		}

		if bound, ok := e.graph.loopBound(current, next); ok {
			key := transition{current, next}
			if traversals[key] >= bound {
				logger.WarnContext(ctx, "Loop bound reached, ending execution", "from", current, "to", next, "bound", bound)

				break
			}

			traversals[key]++
		}

		current = next
	}

	duration := time.Since(started).Milliseconds()

	if state.HasError() {
		e.emit(ctx, events.ExecutionFailed{
			BaseEvent:  e.base(events.ExecutionFailedEvent, executionID),
			DurationMs: duration,
			Error:      state.Error,
		})
	} else {
		e.emit(ctx, events.ExecutionCompleted{
			BaseEvent:    e.base(events.ExecutionCompletedEvent, executionID),
			DurationMs:   duration,
			QualityScore: state.QualityScore,
			RetryCount:   state.RetryCount,
			HasChart:     state.HasChart(),
		})
	}

	return state, nil
}

func (e *Engine) step(ctx context.Context, executionID string, node protocol.Node, state models.WorkflowState) models.WorkflowState {
	started := time.Now()

	e.emit(ctx, events.NodeStarted{
		BaseEvent:    e.base(events.NodeStartedEvent, executionID),
		NodeID:       node.ID(),
		NodeType:     node.Type(),
		RetryCount:   state.RetryCount,
		InputSummary: summarizeState(state),
	})

	update, err := safeExecute(ctx, node, state.Clone())
	if err == nil {
		if verr := update.Validate(node.Writes()); verr != nil {
			err = fmt.Errorf("node %s: %w", node.ID(), verr)
		}
	}

	if err != nil {
		e.emit(ctx, events.NodeFailed{
			BaseEvent:  e.base(events.NodeFailedEvent, executionID),
			NodeID:     node.ID(),
			NodeType:   node.Type(),
			RetryCount: state.RetryCount,
			Error:      err.Error(),
			DurationMs: time.Since(started).Milliseconds(),
		})

		if failSafe, ok := node.(FailSafe); ok {
			fallback := failSafe.FailSafe(state.Clone(), err)
			if fallback.Validate(node.Writes()) == nil {
				state.Apply(fallback)

				return state
			}
		}

		state.Error = err.Error()

		return state
	}

	state.Apply(update)

	e.emit(ctx, events.NodeCompleted{
		BaseEvent:     e.base(events.NodeCompletedEvent, executionID),
		NodeID:        node.ID(),
		NodeType:      node.Type(),
		RetryCount:    state.RetryCount,
		OutputSummary: summarizeUpdate(update),
		DurationMs:    time.Since(started).Milliseconds(),
	})

	return state
}

func safeExecute(ctx context.Context, node protocol.Node, state models.WorkflowState) (update models.Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			update = models.Update{}
			err = fmt.Errorf("%w: %s: %v", ErrNodePanic, node.ID(), r)
		}
	}()

	return node.Execute(ctx, state)
}

func (e *Engine) base(eventType events.EventType, executionID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, executionID)
	base.WorkerID = e.workerID

	return base
}

func (e *Engine) emit(ctx context.Context, event events.Event) {
	if e.observer == nil {
		return
	}

	e.observer.Observe(ctx, event)
}
