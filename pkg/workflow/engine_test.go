package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartAnalysis = `{"chart_type":"bar","title":"Sales","label_column":0,"value_column":1,"date_column":-1,"aggregation":"none","time_grouping":"none"}`

func ragBackends(generator backends.TextGenerator) backends.Backends {
	return backends.Backends{
		Retrieval: stubRetrieval{result: &backends.RetrievalResult{
			Success: true,
			Answer:  "Refunds are processed within five business days.",
			Data: backends.RetrievalData{RetrievedDocuments: []models.RetrievedDocument{
				{Source: "refunds.md", Preview: "Refunds are processed..."},
			}},
		}},
		Generator: generator,
	}
}

func chartBackends(generator backends.TextGenerator, renderer backends.ChartRenderer) backends.Backends {
	return backends.Backends{
		Query: stubQuery{result: &backends.QueryResult{
			Success: true,
			Data: backends.TabularData{
				Columns: []string{"product", "sales"},
				Rows:    [][]string{{"WidgetA", "300"}, {"WidgetB", "900"}, {"WidgetC", "50"}},
			},
		}},
		Renderer:  renderer,
		Generator: generator,
	}
}

func TestEngine_RetryExhaustionEndsWithApology(t *testing.T) {
	generator := &scriptedGenerator{route: "rag", assessment: assessment(2, 2, 2, 2, 2)}
	rec := &recorder{}
	engine := newQueryEngine(t, ragBackends(generator), WithObserver(rec))

	state, err := engine.Run(context.Background(), "exec-retry", "what is the refund policy", docsDatasource())
	require.NoError(t, err)

	assert.Equal(t, retry.Apology, state.Answer)
	assert.Equal(t, models.MaxQualityScore, state.QualityScore)
	assert.Equal(t, models.MaxRetries, state.RetryCount)
	assert.False(t, state.HasError())

	assert.Equal(t, []string{
		"router", "rag_query",
		"synthesis", "validation", "retry",
		"synthesis", "validation", "retry",
		"synthesis", "validation", "retry",
	}, rec.nodeSequence("exec-retry"))
	assert.Len(t, generator.synthesisPrompts(), 3)
}

func TestEngine_AcceptsPassingScore(t *testing.T) {
	generator := &scriptedGenerator{route: "rag", assessment: assessment(8, 8, 6, 9, 7)}
	rec := &recorder{}
	engine := newQueryEngine(t, ragBackends(generator), WithObserver(rec))

	state, err := engine.Run(context.Background(), "exec-pass", "what is the refund policy", docsDatasource())
	require.NoError(t, err)

	assert.Equal(t, 8, state.QualityScore)
	assert.Equal(t, 0, state.RetryCount)
	assert.Equal(t, []string{"router", "rag_query", "synthesis", "validation"}, rec.nodeSequence("exec-pass"))

	recorded := rec.forExecution("exec-pass")
	completed, ok := recorded[len(recorded)-1].(events.ExecutionCompleted)
	require.True(t, ok)
	assert.Equal(t, 8, completed.QualityScore)
}

func TestEngine_RecoversAfterOneRetry(t *testing.T) {
	calls := 0
	generator := &scriptedGenerator{route: "rag"}
	generator.answer = func(string) string {
		calls++

		return fmt.Sprintf("attempt %d", calls)
	}

	var mu sync.Mutex

	scores := []string{assessment(3, 3, 3, 3, 3), assessment(9, 9, 9, 9, 9)}
	b := ragBackends(backends.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Rate the answer") {
			mu.Lock()
			defer mu.Unlock()

			next := scores[0]
			scores = scores[1:]

			return next, nil
		}

		return generator.Generate(ctx, prompt)
	}))

	state, err := newQueryEngine(t, b).Run(context.Background(), "exec-once", "explain the refund policy", docsDatasource())
	require.NoError(t, err)

	assert.Equal(t, 1, state.RetryCount)
	assert.Equal(t, 9, state.QualityScore)
	assert.Equal(t, "attempt 2", state.Answer)
}

func TestEngine_ChartRenderUnavailable(t *testing.T) {
	generator := &scriptedGenerator{route: "sql", task: "chart", chart: chartAnalysis, assessment: assessment(9, 9, 9, 9, 9)}
	engine := newQueryEngine(t, chartBackends(generator, stubRenderer{err: fmt.Errorf("%w: status 502", backends.ErrRenderUnavailable)}))

	state, err := engine.Run(context.Background(), "exec-render", "chart sales per product", salesDatasource())
	require.NoError(t, err)

	assert.False(t, state.HasError())
	assert.False(t, state.HasChart())
	require.NotNil(t, state.ChartImage)
	assert.Empty(t, *state.ChartImage)
	require.NotNil(t, state.ChartConfig)
	assert.Equal(t, []string{"WidgetB", "WidgetA", "WidgetC"}, state.ChartConfig.Labels)

	prompts := generator.synthesisPrompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Do not mention any chart")
}

func TestEngine_ChartRendered(t *testing.T) {
	generator := &scriptedGenerator{route: "sql", task: "chart", chart: chartAnalysis, assessment: assessment(9, 9, 9, 9, 9)}
	rec := &recorder{}
	engine := newQueryEngine(t, chartBackends(generator, stubRenderer{image: "https://charts.local/1.png"}), WithObserver(rec))

	state, err := engine.Run(context.Background(), "exec-chart", "chart sales per product", salesDatasource())
	require.NoError(t, err)

	assert.True(t, state.HasChart())
	assert.Equal(t, []string{"router", "sql_classifier", "sql_execution", "chart_config", "chart_render", "synthesis", "validation"},
		rec.nodeSequence("exec-chart"))
	assert.Contains(t, generator.synthesisPrompts()[0], "chart of this data is shown")

	recorded := rec.forExecution("exec-chart")
	completed, ok := recorded[len(recorded)-1].(events.ExecutionCompleted)
	require.True(t, ok)
	assert.True(t, completed.HasChart)
}

func TestEngine_PlainQueryGoesToSynthesis(t *testing.T) {
	generator := &scriptedGenerator{route: "sql", task: "query", assessment: assessment(9, 9, 9, 9, 9)}
	rec := &recorder{}
	engine := newQueryEngine(t, chartBackends(generator, nil), WithObserver(rec))

	_, err := engine.Run(context.Background(), "exec-plain", "how many orders", salesDatasource())
	require.NoError(t, err)

	assert.Equal(t, []string{"router", "sql_classifier", "synthesis", "validation"}, rec.nodeSequence("exec-plain"))
}

func TestEngine_BackendFailureSkipsContentStages(t *testing.T) {
	generator := &scriptedGenerator{route: "sql", task: "chart", assessment: assessment(9, 9, 9, 9, 9)}
	b := backends.Backends{
		Query:     stubQuery{result: &backends.QueryResult{Success: false, Error: "relation \"orders\" does not exist"}},
		Generator: generator,
	}
	rec := &recorder{}

	state, err := newQueryEngine(t, b, WithObserver(rec)).Run(context.Background(), "exec-fail", "plot sales", salesDatasource())
	require.NoError(t, err)

	assert.Equal(t, `relation "orders" does not exist`, state.Error)
	assert.Equal(t, 0, state.QualityScore)
	assert.Equal(t, []string{"router", "sql_classifier", "sql_execution", "validation"}, rec.nodeSequence("exec-fail"))
	assert.Empty(t, generator.synthesisPrompts())

	recorded := rec.forExecution("exec-fail")
	failed, ok := recorded[len(recorded)-1].(events.ExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, state.Error, failed.Error)

	resp := models.NewQueryResponse("exec-fail", state)
	assert.False(t, resp.Success)
	assert.Equal(t, models.FailureAnswer, resp.Answer)
}

func TestEngine_NoGeneratorUsesFallbacks(t *testing.T) {
	b := ragBackends(nil)
	rec := &recorder{}

	state, err := newQueryEngine(t, b, WithObserver(rec)).Run(context.Background(), "exec-nogen", "explain what this policy document says", docsDatasource())
	require.NoError(t, err)

	assert.Equal(t, models.QueryTypeRAG, state.QueryType)
	assert.NotEmpty(t, state.Answer)
	assert.LessOrEqual(t, state.RetryCount, models.MaxRetries)
	assert.False(t, state.HasError())
}

func TestEngine_EventOrdering(t *testing.T) {
	generator := &scriptedGenerator{route: "rag", assessment: assessment(4, 4, 4, 4, 4)}
	rec := &recorder{}

	_, err := newQueryEngine(t, ragBackends(generator), WithObserver(rec)).Run(context.Background(), "exec-order", "policy?", docsDatasource())
	require.NoError(t, err)

	recorded := rec.forExecution("exec-order")
	require.NotEmpty(t, recorded)

	_, first := recorded[0].(events.ExecutionStarted)
	assert.True(t, first, "first event must be execution.started")

	_, last := recorded[len(recorded)-1].(events.ExecutionCompleted)
	assert.True(t, last, "last event must be execution.completed")

	body := recorded[1 : len(recorded)-1]
	require.Zero(t, len(body)%2)

	for i := 0; i < len(body); i += 2 {
		started, ok := body[i].(events.NodeStarted)
		require.True(t, ok, "event %d should be node.started, got %s", i, body[i].GetType())

		assert.Equal(t, started.NodeID, events.NodeID(body[i+1]))
		assert.Contains(t, []events.EventType{events.NodeCompletedEvent, events.NodeFailedEvent}, body[i+1].GetType())
		assert.False(t, body[i+1].GetTimestamp().Before(started.GetTimestamp()))
	}
}

func TestEngine_ConcurrentRunsAreIsolated(t *testing.T) {
	generator := &scriptedGenerator{route: "rag", assessment: assessment(9, 9, 9, 9, 9)}
	generator.answer = func(prompt string) string {
		for line := range strings.SplitSeq(prompt, "\n") {
			if question, ok := strings.CutPrefix(line, "Question: "); ok {
				return "answer to " + question
			}
		}

		return ""
	}

	rec := &recorder{}
	engine := newQueryEngine(t, ragBackends(generator), WithObserver(rec))

	const runs = 16

	var wg sync.WaitGroup

	results := make([]models.WorkflowState, runs)

	for i := range runs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			state, err := engine.Run(context.Background(), fmt.Sprintf("exec-%d", i), fmt.Sprintf("policy question %d", i), docsDatasource())
			assert.NoError(t, err)

			results[i] = state
		}()
	}

	wg.Wait()

	for i, state := range results {
		assert.Equal(t, fmt.Sprintf("policy question %d", i), state.UserInput)
		assert.Equal(t, fmt.Sprintf("answer to policy question %d", i), state.Answer)
		assert.Equal(t, []string{"router", "rag_query", "synthesis", "validation"}, rec.nodeSequence(fmt.Sprintf("exec-%d", i)))
	}
}

func TestEngine_IgnoresCallerCancellation(t *testing.T) {
	generator := &scriptedGenerator{route: "rag", assessment: assessment(9, 9, 9, 9, 9)}
	engine := newQueryEngine(t, ragBackends(generator))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := engine.Run(ctx, "exec-cancel", "policy", docsDatasource())
	require.NoError(t, err)
	assert.False(t, state.HasError())
	assert.Equal(t, 9, state.QualityScore)
}

func TestEngine_InvalidGraph(t *testing.T) {
	_, err := NewEngine(NewGraph()).Run(context.Background(), "exec", "q", models.Datasource{})
	assert.True(t, errors.Is(err, ErrInvalidGraph))
}
