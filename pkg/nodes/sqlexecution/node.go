package sqlexecution

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

const (
	NodeID = "sql_execution"

	reasonUnavailable = "structured query backend is not configured"
	reasonUnknown     = "structured query failed"
)

// Node runs the question against the structured-query backend.
type Node struct {
	backend backends.StructuredQuery
	logger  *slog.Logger
}

// NewNode creates a new SQL execution node.
func NewNode(backend backends.StructuredQuery, logger *slog.Logger) *Node {
	return &Node{
		backend: backend,
		logger:  logger.With("module", "sql_execution_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeExecution
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.Fields(models.FieldStructuredData, models.FieldError)
}

// Execute stores the returned rows, or the backend reason as the execution error.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	if n.backend == nil {
		return failed(reasonUnavailable), nil
	}

	result, err := n.backend.Query(ctx, state.UserInput, state.Datasource.Restricted())
	if err != nil {
		n.logger.ErrorContext(ctx, "Structured query failed", "error", err)

		return failed(err.Error()), nil
	}

	if result == nil || !result.Success {
		reason := reasonUnknown
		if result != nil && result.Error != "" {
			reason = result.Error
		}

		return failed(reason), nil
	}

	data := &models.StructuredData{
		Columns: result.Data.Columns,
		Rows:    result.Data.Rows,
	}

	if len(result.Data.Rows) == 0 && result.Answer != "" {
		data.Answer = result.Answer
	}

	n.logger.DebugContext(ctx, "Structured query succeeded", "rows", len(data.Rows))

	return models.Update{StructuredData: data}, nil
}

func failed(reason string) models.Update {
	return models.Update{Error: &reason}
}
