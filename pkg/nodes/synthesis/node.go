package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

const (
	NodeID = "synthesis"

	// MaxPromptRows caps the table rows included in the prompt.
	MaxPromptRows = 50
)

// Node writes the final answer from everything gathered so far.
type Node struct {
	generator backends.TextGenerator
	logger    *slog.Logger
}

// NewNode creates a new synthesis node.
func NewNode(generator backends.TextGenerator, logger *slog.Logger) *Node {
	return &Node{
		generator: generator,
		logger:    logger.With("module", "synthesis_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeGeneration
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.FieldAnswer
}

// Execute leaves the state untouched when no generator is configured.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	if n.generator == nil {
		n.logger.DebugContext(ctx, "No text generator configured, keeping current answer")

		return models.Update{}, nil
	}

	answer, err := n.generator.Generate(ctx, BuildPrompt(state))
	if err != nil {
		return models.Update{}, fmt.Errorf("answer generation failed: %w", err)
	}

	answer = strings.TrimSpace(answer)

	return models.Update{Answer: &answer}, nil
}

// BuildPrompt assembles the single synthesis prompt.
func BuildPrompt(state models.WorkflowState) string {
	var sb strings.Builder

	sb.WriteString("You are a data analyst. Answer the user's question clearly and concisely, ")
	sb.WriteString("using only the information below.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", state.UserInput)

	if data := state.StructuredData; data != nil {
		if len(data.Columns) > 0 {
			fmt.Fprintf(&sb, "\nColumns: %s\n", strings.Join(data.Columns, " | "))
		}

		if len(data.Rows) > 0 {
			shown := min(len(data.Rows), MaxPromptRows)
			fmt.Fprintf(&sb, "Rows (%d of %d):\n", shown, len(data.Rows))

			for _, row := range data.Rows[:shown] {
				sb.WriteString(strings.Join(row, " | "))
				sb.WriteByte('\n')
			}
		}

		if data.Answer != "" {
			fmt.Fprintf(&sb, "\nQuery result summary: %s\n", data.Answer)
		}

		if len(data.Documents) > 0 {
			sb.WriteString("\nRetrieved documents:\n")

			for _, doc := range data.Documents {
				fmt.Fprintf(&sb, "- %s: %s\n", doc.Source, doc.Preview)
			}
		}
	}

	if state.Answer != "" {
		fmt.Fprintf(&sb, "\nPrevious answer: %s\n", state.Answer)
	}

	if state.RetryCount > 0 && state.Validation != nil && state.Validation.Feedback != "" {
		fmt.Fprintf(&sb, "\nReviewer feedback on the previous answer: %s\n", state.Validation.Feedback)
	}

	if state.HasChart() {
		sb.WriteString("\nA chart of this data is shown to the user next to your answer. Refer to it where helpful.\n")
	} else {
		sb.WriteString("\nNo chart is shown to the user. Do not mention any chart or visualization.\n")
	}

	return sb.String()
}
