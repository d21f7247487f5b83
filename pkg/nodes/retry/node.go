package retry

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/models"
)

const NodeID = "retry"

// Apology replaces the answer when no attempt reached the quality threshold.
const Apology = "I'm sorry, I could not produce a reliable answer to your question after several attempts. " +
	"Please try rephrasing it or asking about a narrower topic."

// Node loops back to synthesis or gives up with an apology.
type Node struct {
	logger *slog.Logger
}

// NewNode creates a new retry node.
func NewNode(logger *slog.Logger) *Node {
	return &Node{
		logger: logger.With("module", "retry_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeRetry
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.Fields(models.FieldAnswer, models.FieldQualityScore, models.FieldRetryCount, models.FieldError)
}

// Execute increments the retry count and clears the error, or apologizes once the retries are exhausted.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	if state.RetryCount >= models.MaxRetries {
		n.logger.WarnContext(ctx, "Retries exhausted, returning apology", "retry_count", state.RetryCount)

		return models.Update{
			Answer:       models.Ptr(Apology),
			QualityScore: models.Ptr(models.MaxQualityScore),
		}, nil
	}

	next := state.RetryCount + 1

	n.logger.InfoContext(ctx, "Retrying answer synthesis", "retry_count", next, "quality_score", state.QualityScore)

	return models.Update{
		RetryCount: &next,
		ClearError: true,
	}, nil
}

// Exhausted reports whether the retry node has given up on the execution.
func Exhausted(state models.WorkflowState) bool {
	return state.RetryCount >= models.MaxRetries && state.Answer == Apology
}
