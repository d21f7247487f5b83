package ragquery

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes"
)

const (
	NodeID = "rag_query"

	// PreviewLength bounds each document preview, in runes.
	PreviewLength = 200

	reasonUnavailable = "document retrieval backend is not configured"
	reasonUnknown     = "document retrieval failed"
)

// Node answers document questions through the retrieval backend.
type Node struct {
	backend backends.DocumentRetrieval
	logger  *slog.Logger
}

// NewNode creates a new document retrieval node.
func NewNode(backend backends.DocumentRetrieval, logger *slog.Logger) *Node {
	return &Node{
		backend: backend,
		logger:  logger.With("module", "rag_query_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeRetrieval
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.Fields(models.FieldAnswer, models.FieldStructuredData, models.FieldError)
}

// Execute stores the retrieval answer and document previews, or the backend reason as the execution error.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	if n.backend == nil {
		return failed(reasonUnavailable), nil
	}

	result, err := n.backend.Query(ctx, state.UserInput, state.Datasource.Restricted())
	if err != nil {
		n.logger.ErrorContext(ctx, "Document retrieval failed", "error", err)

		return failed(err.Error()), nil
	}

	if result == nil || !result.Success {
		reason := reasonUnknown
		if result != nil && result.Error != "" {
			reason = result.Error
		}

		return failed(reason), nil
	}

	documents := make([]models.RetrievedDocument, 0, len(result.Data.RetrievedDocuments))
	for _, doc := range result.Data.RetrievedDocuments {
		documents = append(documents, models.RetrievedDocument{
			Source:  doc.Source,
			Preview: nodes.Truncate(doc.Preview, PreviewLength),
		})
	}

	answer := result.Answer

	return models.Update{
		Answer:         &answer,
		StructuredData: &models.StructuredData{Documents: documents},
	}, nil
}

func failed(reason string) models.Update {
	return models.Update{Error: &reason}
}
