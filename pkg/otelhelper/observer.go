package otelhelper

import (
	"context"
	"errors"
	"sync"

	"github.com/dukex/insight/pkg/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type nodeKey struct {
	executionID string
	nodeID      string
}

// TracingObserver turns lifecycle events into spans: one span per execution with a child span for
// every node run.
type TracingObserver struct {
	tracer trace.Tracer

	mu         sync.Mutex
	executions map[string]context.Context
	runs       map[string]trace.Span
	nodes      map[nodeKey]trace.Span
}

func NewTracingObserver(tracer trace.Tracer) *TracingObserver {
	return &TracingObserver{
		tracer:     tracer,
		executions: make(map[string]context.Context),
		runs:       make(map[string]trace.Span),
		nodes:      make(map[nodeKey]trace.Span),
	}
}

func (o *TracingObserver) Observe(ctx context.Context, event events.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	executionID := event.GetExecutionID()

	switch e := event.(type) {
	case events.ExecutionStarted:
		spanCtx, span := StartSpan(ctx, o.tracer, "query.execution",
			attribute.String(ExecutionIDKey, executionID),
			attribute.String(DatasourceIDKey, e.Datasource.ID),
			attribute.String(WorkerIDKey, e.WorkerID),
		)
		o.executions[executionID] = spanCtx
		o.runs[executionID] = span
	case events.NodeStarted:
		parent, ok := o.executions[executionID]
		if !ok {
			parent = ctx
		}

		_, span := StartSpan(parent, o.tracer, "node."+e.NodeID,
			attribute.String(ExecutionIDKey, executionID),
			attribute.String(NodeIDKey, e.NodeID),
			attribute.String(NodeTypeKey, string(e.NodeType)),
			attribute.Int(RetryCountKey, e.RetryCount),
		)
		o.nodes[nodeKey{executionID, e.NodeID}] = span
	case events.NodeCompleted:
		if span, ok := o.takeNode(executionID, e.NodeID); ok {
			span.SetStatus(codes.Ok, "")
			span.End()
		}
	case events.NodeFailed:
		if span, ok := o.takeNode(executionID, e.NodeID); ok {
			SetError(span, errors.New(e.Error))
			span.End()
		}
	case events.ExecutionCompleted:
		if span, ok := o.takeExecution(executionID); ok {
			span.SetAttributes(
				attribute.Int(QualityScoreKey, e.QualityScore),
				attribute.Int(RetryCountKey, e.RetryCount),
				attribute.Bool(HasChartKey, e.HasChart),
			)
			span.SetStatus(codes.Ok, "")
			span.End()
		}
	case events.ExecutionFailed:
		if span, ok := o.takeExecution(executionID); ok {
			SetError(span, errors.New(e.Error))
			span.End()
		}
	}
}

func (o *TracingObserver) takeNode(executionID, nodeID string) (trace.Span, bool) {
	key := nodeKey{executionID, nodeID}

	span, ok := o.nodes[key]
	delete(o.nodes, key)

	return span, ok
}

// takeExecution also ends node spans left open by the execution.
func (o *TracingObserver) takeExecution(executionID string) (trace.Span, bool) {
	for key, span := range o.nodes {
		if key.executionID == executionID {
			span.End()
			delete(o.nodes, key)
		}
	}

	span, ok := o.runs[executionID]
	delete(o.runs, executionID)
	delete(o.executions, executionID)

	return span, ok
}
