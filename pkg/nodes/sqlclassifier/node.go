package sqlclassifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes"
)

const NodeID = "sql_classifier"

// ChartKeywords mark a request for a visualization.
var ChartKeywords = []string{
	"chart", "plot", "graph", "trend", "distribution", "visualize", "visualise", "visualization",
	"diagram", "pie", "bar", "line", "histogram", "compare",
	"图", "图表", "趋势", "分布", "可视化",
}

const promptTemplate = `Decide how to answer this database question.
Answer "chart" if the user wants a visualization such as a chart, plot, trend or distribution.
Answer "query" if a direct answer or table is enough.
Answer with exactly one word: query or chart.

Question: %s`

// Node decides whether a structured-data question wants a plain answer or a chart.
type Node struct {
	generator backends.TextGenerator
	logger    *slog.Logger
}

// NewNode creates a new SQL task classifier node.
func NewNode(generator backends.TextGenerator, logger *slog.Logger) *Node {
	return &Node{
		generator: generator,
		logger:    logger.With("module", "sql_classifier_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeClassifier
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.FieldSQLTaskType
}

// Execute sets the SQL task type, falling back to visualization keywords.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	taskType, ok := n.classify(ctx, state.UserInput)
	if !ok {
		taskType = Fallback(state.UserInput)
	}

	return models.Update{SQLTaskType: &taskType}, nil
}

func (n *Node) classify(ctx context.Context, input string) (models.SQLTaskType, bool) {
	if n.generator == nil {
		return models.SQLTaskUnset, false
	}

	answer, err := n.generator.Generate(ctx, fmt.Sprintf(promptTemplate, input))
	if err != nil {
		n.logger.WarnContext(ctx, "Classification failed, using keyword fallback", "error", err)

		return models.SQLTaskUnset, false
	}

	switch taskType := models.SQLTaskType(nodes.Token(answer)); taskType {
	case models.SQLTaskQuery, models.SQLTaskChart:
		return taskType, true
	default:
		n.logger.WarnContext(ctx, "Invalid classification, using keyword fallback", "answer", answer)

		return models.SQLTaskUnset, false
	}
}

var chartTerms = nodes.NewMatcher(ChartKeywords...)

// Fallback returns chart when any visualization keyword occurs in input.
func Fallback(input string) models.SQLTaskType {
	if chartTerms.Any(input) {
		return models.SQLTaskChart
	}

	return models.SQLTaskQuery
}
