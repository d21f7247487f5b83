package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/tracker"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	DatasourceDatabase      = "database"
	DatasourceKnowledgeBase = "knowledge_base"
)

// Runner executes the query graph; *workflow.Engine implements it.
type Runner interface {
	Run(ctx context.Context, executionID, query string, datasource models.Datasource) (models.WorkflowState, error)
}

type Query struct {
	engine  Runner
	logger  *slog.Logger
	sem     *semaphore.Weighted
	results *results
	newID   func() string
	wg      sync.WaitGroup
}

type QueryOption func(*Query)

// WithMaxConcurrent caps how many executions run at once. Zero or less means no cap.
func WithMaxConcurrent(n int64) QueryOption {
	return func(q *Query) {
		if n > 0 {
			q.sem = semaphore.NewWeighted(n)
		}
	}
}

func WithIDGenerator(newID func() string) QueryOption {
	return func(q *Query) {
		q.newID = newID
	}
}

func WithClock(now func() time.Time) QueryOption {
	return func(q *Query) {
		q.results.now = now
	}
}

func NewQuery(engine Runner, logger *slog.Logger, opts ...QueryOption) *Query {
	q := &Query{
		engine:  engine,
		logger:  logger.With("module", "query_service"),
		results: newResults(time.Now),
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Ask runs one execution under a fresh id and waits for its response.
func (q *Query) Ask(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error) {
	return q.Execute(ctx, q.newID(), req)
}

// Execute runs one execution under executionID, waiting for a free slot when concurrency is capped.
// Execution failures are reported in the response; the error is set only when the request is
// rejected or the engine cannot run at all.
func (q *Query) Execute(ctx context.Context, executionID string, req models.QueryRequest) (models.QueryResponse, error) {
	if err := checkRequest("execute", req); err != nil {
		return models.QueryResponse{}, err
	}

	if q.sem != nil {
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return models.QueryResponse{}, err
		}
		defer q.sem.Release(1)
	}

	return q.run(ctx, executionID, req)
}

// Submit starts an execution in the background and returns its id. The response is available from
// Result once the execution ends.
func (q *Query) Submit(ctx context.Context, req models.QueryRequest) (string, error) {
	if err := checkRequest("submit", req); err != nil {
		return "", err
	}

	if q.sem != nil && !q.sem.TryAcquire(1) {
		return "", ErrTooManyExecutions
	}

	executionID := q.newID()
	q.results.pending(executionID)

	q.wg.Add(1)

	go func() {
		defer q.wg.Done()

		if q.sem != nil {
			defer q.sem.Release(1)
		}

		resp, _ := q.run(context.WithoutCancel(ctx), executionID, req)
		q.results.store(resp)
	}()

	return executionID, nil
}

// Result returns the response of a submitted execution.
func (q *Query) Result(executionID string) (models.QueryResponse, error) {
	return q.results.get(executionID)
}

// Pending reports whether executionID was submitted and has not finished yet.
func (q *Query) Pending(executionID string) bool {
	_, err := q.results.get(executionID)

	return errors.Is(err, ErrExecutionRunning)
}

// Results exposes the async result store so it can be evicted with the execution records.
func (q *Query) Results() tracker.Evictor {
	return q.results
}

// Wait blocks until every submitted execution has finished.
func (q *Query) Wait() {
	q.wg.Wait()
}

func (q *Query) run(ctx context.Context, executionID string, req models.QueryRequest) (models.QueryResponse, error) {
	logger := q.logger.With("execution_id", executionID)

	state, err := q.engine.Run(ctx, executionID, req.Query, req.Datasource)
	if err != nil {
		logger.ErrorContext(ctx, "Engine refused to run", "error", err)

		return models.NewFailedQueryResponse(executionID, err), &ServiceError{
			Op:      "run",
			Code:    "engine_misconfigured",
			Message: "query engine is misconfigured",
			Err:     err,
		}
	}

	resp := models.NewQueryResponse(executionID, state)

	logger.InfoContext(ctx, "Query answered",
		"success", resp.Success,
		"query_type", resp.QueryType,
		"quality_score", resp.QualityScore,
		"retry_count", resp.RetryCount)

	return resp, nil
}

func checkRequest(op string, req models.QueryRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return NewValidationError(op, "empty_query", "query must not be empty", ErrInvalidRequest)
	}

	switch req.Datasource.Type {
	case DatasourceDatabase, DatasourceKnowledgeBase:
	default:
		return NewValidationError(op, "invalid_datasource", "unsupported datasource type "+req.Datasource.Type, ErrInvalidRequest)
	}

	return nil
}
