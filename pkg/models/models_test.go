package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_Fields(t *testing.T) {
	update := Update{
		QueryType:  Ptr(QueryTypeSQL),
		Answer:     Ptr("hello"),
		ClearError: true,
	}

	fields := update.Fields()

	assert.True(t, fields.Has(FieldQueryType))
	assert.True(t, fields.Has(FieldAnswer))
	assert.True(t, fields.Has(FieldError))
	assert.False(t, fields.Has(FieldChartConfig))
	assert.Equal(t, 3, fields.Len())
	assert.Equal(t, "query_type,answer,error", fields.String())
	assert.True(t, Update{}.IsEmpty())
}

func TestUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  Update
		allowed FieldSet
		wantErr error
	}{
		{
			name:    "declared field",
			update:  Update{QueryType: Ptr(QueryTypeRAG)},
			allowed: FieldQueryType,
		},
		{
			name:    "undeclared field",
			update:  Update{Answer: Ptr("x")},
			allowed: FieldQueryType,
			wantErr: ErrUndeclaredField,
		},
		{
			name:    "unset query type rejected",
			update:  Update{QueryType: Ptr(QueryTypeUnset)},
			allowed: FieldQueryType,
			wantErr: ErrInvalidUpdate,
		},
		{
			name:    "bad sql task type",
			update:  Update{SQLTaskType: Ptr(SQLTaskType("table"))},
			allowed: FieldSQLTaskType,
			wantErr: ErrInvalidUpdate,
		},
		{
			name:    "quality above range",
			update:  Update{QualityScore: Ptr(11)},
			allowed: FieldQualityScore,
			wantErr: ErrInvalidUpdate,
		},
		{
			name:    "retry count above ceiling",
			update:  Update{RetryCount: Ptr(MaxRetries + 1)},
			allowed: FieldRetryCount,
			wantErr: ErrInvalidUpdate,
		},
		{
			name:    "error set and cleared",
			update:  Update{Error: Ptr("boom"), ClearError: true},
			allowed: FieldError,
			wantErr: ErrInvalidUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate(tt.allowed)
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestWorkflowState_Apply(t *testing.T) {
	state := NewWorkflowState("show sales", Datasource{ID: "ds-1", Type: "database", TableRefs: []string{"orders"}})
	state.Error = "previous failure"

	state.Apply(Update{
		QueryType:    Ptr(QueryTypeSQL),
		SQLTaskType:  Ptr(SQLTaskChart),
		ChartImage:   Ptr("https://charts/1.png"),
		Answer:       Ptr("Sales grew."),
		QualityScore: Ptr(9),
		RetryCount:   Ptr(1),
		ClearError:   true,
	})

	assert.Equal(t, QueryTypeSQL, state.QueryType)
	assert.Equal(t, SQLTaskChart, state.SQLTaskType)
	assert.True(t, state.HasChart())
	assert.Equal(t, "Sales grew.", state.Answer)
	assert.Equal(t, 9, state.QualityScore)
	assert.Equal(t, 1, state.RetryCount)
	assert.False(t, state.HasError())
}

func TestWorkflowState_CloneIsDeep(t *testing.T) {
	state := NewWorkflowState("q", Datasource{ID: "ds", Type: "database", TableRefs: []string{"a"}})
	state.StructuredData = &StructuredData{Columns: []string{"x"}, Rows: [][]string{{"1"}}}
	state.ChartConfig = &ChartConfig{Labels: []string{"l"}, Datasets: []ChartDataset{{Data: []float64{1}}}}

	clone := state.Clone()
	clone.StructuredData.Rows[0][0] = "changed"
	clone.ChartConfig.Datasets[0].Data[0] = 42
	clone.Datasource.TableRefs[0] = "b"

	assert.Equal(t, "1", state.StructuredData.Rows[0][0])
	assert.InDelta(t, 1.0, state.ChartConfig.Datasets[0].Data[0], 0.0001)
	assert.Equal(t, "a", state.Datasource.TableRefs[0])
}

func TestExecutionRecord_NodesKeepOrder(t *testing.T) {
	record := NewExecutionRecord("exec-1", "q", time.Now())

	record.Node("router", NodeTypeClassifier).Status = NodeStatusCompleted
	record.Node("rag_query", NodeTypeRetrieval).Status = NodeStatusRunning
	record.Node("router", NodeTypeClassifier).Invocations++

	nodes := record.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "router", nodes[0].NodeID)
	assert.Equal(t, 1, nodes[0].Invocations)
	assert.Equal(t, "rag_query", nodes[1].NodeID)

	clone := record.Clone()
	clone.Node("router", NodeTypeClassifier).Status = NodeStatusError

	detail, ok := record.Lookup("router")
	require.True(t, ok)
	assert.Equal(t, NodeStatusCompleted, detail.Status)
}

func TestExecutionRecord_MarshalJSON(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := NewExecutionRecord("exec-1", "q", start)
	record.Node("router", NodeTypeClassifier)
	record.EndTime = start.Add(1500 * time.Millisecond)
	record.Status = ExecutionStatusCompleted

	payload, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "exec-1", decoded["execution_id"])
	assert.Equal(t, "completed", decoded["status"])
	assert.InDelta(t, 1500, decoded["duration_ms"], 0.1)
	assert.Len(t, decoded["nodes"], 1)
}

func TestNewQueryResponse(t *testing.T) {
	state := NewWorkflowState("q", Datasource{ID: "ds", Type: "knowledge_base"})
	state.Answer = "partial"
	state.Error = "retrieval backend unavailable"

	resp := NewQueryResponse("exec-9", state)

	assert.False(t, resp.Success)
	assert.Equal(t, FailureAnswer, resp.Answer)
	assert.Equal(t, "retrieval backend unavailable", resp.Error)

	state.Error = ""
	state.ChartImage = Ptr("https://img")
	resp = NewQueryResponse("exec-9", state)

	assert.True(t, resp.Success)
	assert.Equal(t, "partial", resp.Answer)
	assert.Equal(t, "https://img", resp.ChartImage)
}
