package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus defines the possible states of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusError     ExecutionStatus = "error"
)

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
)

// NodeType categorizes what a node does.
type NodeType string

const (
	NodeTypeClassifier NodeType = "classifier"
	NodeTypeExecution  NodeType = "execution"
	NodeTypeRendering  NodeType = "rendering"
	NodeTypeRetrieval  NodeType = "retrieval"
	NodeTypeGeneration NodeType = "generation"
	NodeTypeValidation NodeType = "validation"
	NodeTypeRetry      NodeType = "retry"
)

// NodeExecutionDetail tracks one node of one execution. Re-entries of the same node (the retry
// loop) overwrite the timing fields and bump Invocations.
type NodeExecutionDetail struct {
	NodeID           string        `json:"node_id"`
	NodeType         NodeType      `json:"node_type"`
	Status           NodeStatus    `json:"status"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time,omitzero"`
	Duration         time.Duration `json:"duration"`
	InputSummary     string        `json:"input_summary,omitempty"`
	OutputSummary    string        `json:"output_summary,omitempty"`
	ErrorDetail      string        `json:"error_detail,omitempty"`
	RetryCountAtTime int           `json:"retry_count_at_time"`
	Invocations      int           `json:"invocations"`
}

// ExecutionRecord holds the lifecycle statistics of one workflow run.
type ExecutionRecord struct {
	ExecutionID string
	Query       string
	StartTime   time.Time
	EndTime     time.Time
	Status      ExecutionStatus
	Error       string

	nodes map[string]*NodeExecutionDetail
	order []string
}

func NewExecutionRecord(executionID string, query string, start time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ExecutionID: executionID,
		Query:       query,
		StartTime:   start,
		Status:      ExecutionStatusRunning,
		nodes:       make(map[string]*NodeExecutionDetail),
	}
}

// Node returns the detail for nodeID, creating a pending entry on first use.
func (r *ExecutionRecord) Node(nodeID string, nodeType NodeType) *NodeExecutionDetail {
	detail, ok := r.nodes[nodeID]
	if !ok {
		detail = &NodeExecutionDetail{
			NodeID:   nodeID,
			NodeType: nodeType,
			Status:   NodeStatusPending,
		}
		r.nodes[nodeID] = detail
		r.order = append(r.order, nodeID)
	}

	return detail
}

func (r *ExecutionRecord) Lookup(nodeID string) (*NodeExecutionDetail, bool) {
	detail, ok := r.nodes[nodeID]

	return detail, ok
}

// Nodes returns node details in first-seen order.
func (r *ExecutionRecord) Nodes() []NodeExecutionDetail {
	details := make([]NodeExecutionDetail, 0, len(r.order))
	for _, id := range r.order {
		details = append(details, *r.nodes[id])
	}

	return details
}

func (r *ExecutionRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}

	return r.EndTime.Sub(r.StartTime)
}

// Clone returns a deep copy safe to hand out of the registry lock.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	clone := *r
	clone.nodes = make(map[string]*NodeExecutionDetail, len(r.nodes))
	clone.order = append([]string(nil), r.order...)

	for id, detail := range r.nodes {
		d := *detail
		clone.nodes[id] = &d
	}

	return &clone
}

func (r *ExecutionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ExecutionID string                `json:"execution_id"`
		Query       string                `json:"query,omitempty"`
		StartTime   time.Time             `json:"start_time"`
		EndTime     time.Time             `json:"end_time,omitzero"`
		DurationMs  int64                 `json:"duration_ms"`
		Status      ExecutionStatus       `json:"status"`
		Error       string                `json:"error,omitempty"`
		Nodes       []NodeExecutionDetail `json:"nodes"`
	}{
		ExecutionID: r.ExecutionID,
		Query:       r.Query,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		DurationMs:  r.Duration().Milliseconds(),
		Status:      r.Status,
		Error:       r.Error,
		Nodes:       r.Nodes(),
	})
}
