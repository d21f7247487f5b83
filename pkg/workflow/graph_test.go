package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/insight/pkg/events"
	"github.com/dukex/insight/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	id     string
	writes models.FieldSet
	exec   func(state models.WorkflowState) (models.Update, error)
	calls  int
}

func (n *fakeNode) ID() string              { return n.id }
func (n *fakeNode) Type() models.NodeType   { return models.NodeTypeGeneration }
func (n *fakeNode) Writes() models.FieldSet { return n.writes }

func (n *fakeNode) Execute(_ context.Context, state models.WorkflowState) (models.Update, error) {
	n.calls++

	if n.exec == nil {
		return models.Update{}, nil
	}

	return n.exec(state)
}

type failSafeNode struct {
	fakeNode
}

func (n *failSafeNode) FailSafe(models.WorkflowState, error) models.Update {
	return models.Update{QualityScore: models.Ptr(models.QualityThreshold)}
}

func answerNode(id, answer string) *fakeNode {
	return &fakeNode{
		id:     id,
		writes: models.FieldAnswer,
		exec: func(models.WorkflowState) (models.Update, error) {
			return models.Update{Answer: models.Ptr(answer)}, nil
		},
	}
}

func always(target string) RouterFunc {
	return func(models.WorkflowState) string { return target }
}

func TestGraph_Validate(t *testing.T) {
	tests := []struct {
		name    string
		graph   func() *Graph
		wantErr string
	}{
		{
			name: "valid",
			graph: func() *Graph {
				return NewGraph().AddNode(answerNode("a", "x")).SetEntry("a").AddEdge("a", End)
			},
		},
		{
			name:    "missing entry",
			graph:   func() *Graph { return NewGraph().AddNode(answerNode("a", "x")) },
			wantErr: "entry node not set",
		},
		{
			name:    "unknown entry",
			graph:   func() *Graph { return NewGraph().AddNode(answerNode("a", "x")).SetEntry("b") },
			wantErr: `entry node "b" not found`,
		},
		{
			name: "unknown target",
			graph: func() *Graph {
				return NewGraph().AddNode(answerNode("a", "x")).SetEntry("a").AddEdge("a", "missing")
			},
			wantErr: "targets unknown node",
		},
		{
			name: "duplicate node",
			graph: func() *Graph {
				return NewGraph().AddNode(answerNode("a", "x")).AddNode(answerNode("a", "y")).SetEntry("a")
			},
			wantErr: `duplicate node "a"`,
		},
		{
			name: "loop on undeclared transition",
			graph: func() *Graph {
				return NewGraph().
					AddNode(answerNode("a", "x")).
					AddNode(answerNode("b", "y")).
					SetEntry("a").
					AddEdge("a", "b").
					AddLoopEdge("b", "a", 2)
			},
			wantErr: "not a declared transition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEngine_NodePanicIsRecorded(t *testing.T) {
	boom := &fakeNode{
		id:     "boom",
		writes: models.FieldAnswer,
		exec: func(models.WorkflowState) (models.Update, error) {
			panic("nil map")
		},
	}
	after := answerNode("after", "unreachable")

	graph := NewGraph().AddNode(boom).AddNode(after).SetEntry("boom").
		AddConditionalEdge("boom", func(s models.WorkflowState) string {
			if s.HasError() {
				return End
			}

			return "after"
		}, "after", End)

	rec := &recorder{}

	state, err := NewEngine(graph, WithObserver(rec)).Run(context.Background(), "exec-panic", "q", models.Datasource{})
	require.NoError(t, err)

	assert.Contains(t, state.Error, ErrNodePanic.Error())
	assert.Zero(t, after.calls)

	recorded := rec.forExecution("exec-panic")
	require.Len(t, recorded, 4)

	failed, ok := recorded[2].(events.NodeFailed)
	require.True(t, ok)
	assert.Equal(t, "boom", failed.NodeID)
	assert.Contains(t, failed.Error, "nil map")

	_, ok = recorded[3].(events.ExecutionFailed)
	assert.True(t, ok)
}

func TestEngine_RejectsUndeclaredWrites(t *testing.T) {
	sneaky := &fakeNode{
		id:     "sneaky",
		writes: models.FieldQueryType,
		exec: func(models.WorkflowState) (models.Update, error) {
			return models.Update{Answer: models.Ptr("not mine")}, nil
		},
	}

	graph := NewGraph().AddNode(sneaky).SetEntry("sneaky")

	state, err := NewEngine(graph).Run(context.Background(), "exec-undeclared", "q", models.Datasource{})
	require.NoError(t, err)

	assert.Empty(t, state.Answer)
	assert.Contains(t, state.Error, models.ErrUndeclaredField.Error())
}

func TestEngine_FailSafeNodeSuppliesFallback(t *testing.T) {
	node := &failSafeNode{fakeNode{
		id:     "scorer",
		writes: models.FieldQualityScore,
		exec: func(models.WorkflowState) (models.Update, error) {
			return models.Update{}, errors.New("scorer offline")
		},
	}}

	state, err := NewEngine(NewGraph().AddNode(node).SetEntry("scorer")).
		Run(context.Background(), "exec-failsafe", "q", models.Datasource{})
	require.NoError(t, err)

	assert.False(t, state.HasError())
	assert.Equal(t, models.QualityThreshold, state.QualityScore)
}

func TestEngine_LoopBound(t *testing.T) {
	a := answerNode("a", "x")
	b := answerNode("b", "y")

	graph := NewGraph().AddNode(a).AddNode(b).SetEntry("a").
		AddEdge("a", "b").
		AddConditionalEdge("b", always("a"), "a", End).
		AddLoopEdge("b", "a", 2)

	state, err := NewEngine(graph).Run(context.Background(), "exec-loop", "q", models.Datasource{})
	require.NoError(t, err)

	assert.Equal(t, 3, a.calls)
	assert.Equal(t, 3, b.calls)
	assert.False(t, state.HasError())
}

func TestEngine_StepLimit(t *testing.T) {
	spin := answerNode("spin", "again")

	graph := NewGraph().AddNode(spin).SetEntry("spin").
		AddConditionalEdge("spin", always("spin"), "spin")

	state, err := NewEngine(graph, WithMaxSteps(5)).Run(context.Background(), "exec-spin", "q", models.Datasource{})
	require.NoError(t, err)

	assert.Equal(t, 5, spin.calls)
	assert.Contains(t, state.Error, ErrStepLimitExceeded.Error())
}

func TestEngine_InvalidRouteEndsExecution(t *testing.T) {
	graph := NewGraph().AddNode(answerNode("a", "x")).SetEntry("a").
		AddConditionalEdge("a", always("nowhere"), End)

	state, err := NewEngine(graph).Run(context.Background(), "exec-route", "q", models.Datasource{})
	require.NoError(t, err)

	assert.Contains(t, state.Error, ErrInvalidRoute.Error())
	assert.Equal(t, "x", state.Answer)
}

func TestEngine_WorkerIDStampsEvents(t *testing.T) {
	rec := &recorder{}
	graph := NewGraph().AddNode(answerNode("a", "x")).SetEntry("a")

	_, err := NewEngine(graph, WithObserver(rec), WithWorkerID("worker-7")).
		Run(context.Background(), "exec-worker", "q", models.Datasource{})
	require.NoError(t, err)

	for _, event := range rec.forExecution("exec-worker") {
		switch e := event.(type) {
		case events.ExecutionStarted:
			assert.Equal(t, "worker-7", e.WorkerID)
		case events.NodeStarted:
			assert.Equal(t, "worker-7", e.WorkerID)
		case events.NodeCompleted:
			assert.Equal(t, "worker-7", e.WorkerID)
		case events.ExecutionCompleted:
			assert.Equal(t, "worker-7", e.WorkerID)
		}
	}
}
