// Package events defines event types and structures for query execution lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/insight/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every insight event on the event bus.
const Topic = "insight.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// Node lifecycle events.
	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.error"

	// Worker request/response events.
	QueryRequestedEvent EventType = "query.requested"
	QueryAnsweredEvent  EventType = "query.answered"
	QueryFailedEvent    EventType = "query.failed"
)

// Event is implemented by every typed event through BaseEvent.
type Event interface {
	GetType() EventType
	GetExecutionID() string
	GetTimestamp() time.Time
}

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetExecutionID() string {
	return b.ExecutionID
}

func (b BaseEvent) GetTimestamp() time.Time {
	return b.Timestamp
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

// Execution lifecycle events

type ExecutionStarted struct {
	BaseEvent

	Query      string            `json:"query"`
	Datasource models.Datasource `json:"datasource"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	DurationMs   int64 `json:"duration_ms"`
	QualityScore int   `json:"quality_score"`
	RetryCount   int   `json:"retry_count"`
	HasChart     bool  `json:"has_chart"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// Node lifecycle events

type NodeStarted struct {
	BaseEvent

	NodeID       string          `json:"node_id"`
	NodeType     models.NodeType `json:"node_type"`
	RetryCount   int             `json:"retry_count"`
	InputSummary string          `json:"input_summary,omitempty"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID        string          `json:"node_id"`
	NodeType      models.NodeType `json:"node_type"`
	RetryCount    int             `json:"retry_count"`
	OutputSummary string          `json:"output_summary,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	NodeType   models.NodeType `json:"node_type"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

// Worker request/response events

type QueryRequested struct {
	BaseEvent

	Request models.QueryRequest `json:"request"`
}

func (e QueryRequested) GetType() EventType {
	return QueryRequestedEvent
}

type QueryAnswered struct {
	BaseEvent

	Response models.QueryResponse `json:"response"`
}

func (e QueryAnswered) GetType() EventType {
	return QueryAnsweredEvent
}

type QueryFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (e QueryFailed) GetType() EventType {
	return QueryFailedEvent
}
