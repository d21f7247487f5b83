package events

import "time"

// Progress is the flat frame pushed to live subscribers of an execution.
type Progress struct {
	Type        EventType      `json:"type"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Terminal reports whether no further frames follow for the execution.
func (p Progress) Terminal() bool {
	return p.Type == ExecutionCompletedEvent || p.Type == ExecutionFailedEvent
}

// NodeID returns the node an event refers to, or "" for execution-level events.
func NodeID(event Event) string {
	switch e := event.(type) {
	case NodeStarted:
		return e.NodeID
	case NodeCompleted:
		return e.NodeID
	case NodeFailed:
		return e.NodeID
	default:
		return ""
	}
}

func ToProgress(event Event) Progress {
	progress := Progress{
		Type:        event.GetType(),
		ExecutionID: event.GetExecutionID(),
		NodeID:      NodeID(event),
		Timestamp:   event.GetTimestamp(),
	}

	switch e := event.(type) {
	case ExecutionStarted:
		progress.Data = map[string]any{
			"query":         e.Query,
			"datasource_id": e.Datasource.ID,
		}
	case NodeStarted:
		progress.Data = map[string]any{
			"node_type":   e.NodeType,
			"retry_count": e.RetryCount,
		}
	case NodeCompleted:
		progress.Data = map[string]any{
			"node_type":   e.NodeType,
			"retry_count": e.RetryCount,
			"duration_ms": e.DurationMs,
			"output":      e.OutputSummary,
		}
	case NodeFailed:
		progress.Error = e.Error
		progress.Data = map[string]any{
			"node_type":   e.NodeType,
			"retry_count": e.RetryCount,
			"duration_ms": e.DurationMs,
		}
	case ExecutionCompleted:
		progress.Data = map[string]any{
			"duration_ms":   e.DurationMs,
			"quality_score": e.QualityScore,
			"retry_count":   e.RetryCount,
			"has_chart":     e.HasChart,
		}
	case ExecutionFailed:
		progress.Error = e.Error
		progress.Data = map[string]any{
			"duration_ms": e.DurationMs,
		}
	}

	return progress
}
