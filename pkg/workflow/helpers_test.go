package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/registry"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers each prompt family with a fixed reply.
type scriptedGenerator struct {
	route      string
	task       string
	chart      string
	assessment string
	answer     func(prompt string) string

	mu      sync.Mutex
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	switch {
	case strings.HasPrefix(prompt, "Classify the user question"):
		return g.route, nil
	case strings.HasPrefix(prompt, "Decide how to answer"):
		return g.task, nil
	case strings.HasPrefix(prompt, "You configure charts"):
		return g.chart, nil
	case strings.HasPrefix(prompt, "Rate the answer"):
		return g.assessment, nil
	default:
		if g.answer != nil {
			return g.answer(prompt), nil
		}

		return "A complete answer based on the data provided above.", nil
	}
}

func (g *scriptedGenerator) synthesisPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string

	for _, p := range g.prompts {
		if strings.HasPrefix(p, "You are a data analyst") {
			out = append(out, p)
		}
	}

	return out
}

func assessment(relevance, completeness, accuracy, clarity, dataSupport int) string {
	return fmt.Sprintf(`{"relevance": %d, "completeness": %d, "accuracy": %d, "clarity": %d, "data_support": %d, "feedback": "be specific"}`,
		relevance, completeness, accuracy, clarity, dataSupport)
}

type stubQuery struct {
	result *backends.QueryResult
	err    error
}

func (s stubQuery) Query(context.Context, string, models.Datasource) (*backends.QueryResult, error) {
	return s.result, s.err
}

type stubRetrieval struct {
	result *backends.RetrievalResult
	err    error
}

func (s stubRetrieval) Query(context.Context, string, models.Datasource) (*backends.RetrievalResult, error) {
	return s.result, s.err
}

type stubRenderer struct {
	image string
	err   error
}

func (s stubRenderer) Render(context.Context, *models.ChartConfig) (string, error) {
	return s.image, s.err
}

// recorder collects events in emission order.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Observe(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) forExecution(executionID string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []events.Event

	for _, e := range r.events {
		if e.GetExecutionID() == executionID {
			out = append(out, e)
		}
	}

	return out
}

func (r *recorder) nodeSequence(executionID string) []string {
	var ids []string

	for _, e := range r.forExecution(executionID) {
		if started, ok := e.(events.NodeStarted); ok {
			ids = append(ids, started.NodeID)
		}
	}

	return ids
}

func newQueryEngine(t *testing.T, b backends.Backends, opts ...Option) *Engine {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes()

	graph, err := NewQueryGraph(reg, b)
	require.NoError(t, err)

	return NewEngine(graph, opts...)
}

func salesDatasource() models.Datasource {
	return models.Datasource{ID: "sales", Type: "database", TableRefs: []string{"orders"}}
}

func docsDatasource() models.Datasource {
	return models.Datasource{ID: "kb", Type: "knowledge_base"}
}
