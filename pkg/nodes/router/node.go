package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes"
)

const NodeID = "router"

var (
	// SQLKeywords are quantitative and reporting terms.
	SQLKeywords = []string{
		"sales", "revenue", "total", "sum", "count", "average", "avg", "report", "statistics",
		"trend", "month", "monthly", "quarter", "year", "how many", "how much", "top", "ranking",
		"amount", "orders", "chart", "growth", "percentage", "number of",
		"销售", "统计", "总", "多少", "趋势", "排名", "报表",
	}

	// RAGKeywords are document and explanation terms.
	RAGKeywords = []string{
		"document", "documents", "policy", "explain", "what is", "describe", "manual", "guide",
		"definition", "summary of", "according to", "knowledge", "procedure", "why", "how to",
		"文档", "政策", "解释", "什么是", "说明",
	}
)

const promptTemplate = `Classify the user question for an analytics assistant.
Answer "sql" if it needs numbers, aggregates or reports computed from database tables.
Answer "rag" if it needs information from documents, policies or explanations.
Answer with exactly one word: sql or rag.

Question: %s`

// Node classifies the question as a structured-data or a document question.
type Node struct {
	generator backends.TextGenerator
	logger    *slog.Logger
}

// NewNode creates a new router node. A nil generator leaves only the keyword fallback.
func NewNode(generator backends.TextGenerator, logger *slog.Logger) *Node {
	return &Node{
		generator: generator,
		logger:    logger.With("module", "router_node"),
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
	return models.FieldQueryType
}

// Execute sets the query type, falling back to keyword counts when the generator is absent or its answer is not a known type.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	queryType, ok := n.classify(ctx, state.UserInput)
	if !ok {
		queryType = Fallback(state.UserInput)
	}

	return models.Update{QueryType: &queryType}, nil
}

func (n *Node) classify(ctx context.Context, input string) (models.QueryType, bool) {
	if n.generator == nil {
		return models.QueryTypeUnset, false
	}

	answer, err := n.generator.Generate(ctx, fmt.Sprintf(promptTemplate, input))
	if err != nil {
		n.logger.WarnContext(ctx, "Classification failed, using keyword fallback", "error", err)

		return models.QueryTypeUnset, false
	}

	switch queryType := models.QueryType(nodes.Token(answer)); queryType {
	case models.QueryTypeSQL, models.QueryTypeRAG:
		return queryType, true
	default:
		n.logger.WarnContext(ctx, "Invalid classification, using keyword fallback", "answer", answer)

		return models.QueryTypeUnset, false
	}
}

var (
	sqlTerms = nodes.NewMatcher(SQLKeywords...)
	ragTerms = nodes.NewMatcher(RAGKeywords...)
)

// Fallback classifies input by keyword counts. Document terms win only with a strictly higher
// count; no match at all means sql.
func Fallback(input string) models.QueryType {
	sqlHits := sqlTerms.Count(input)
	ragHits := ragTerms.Count(input)

	if ragHits > sqlHits {
		return models.QueryTypeRAG
	}

	return models.QueryTypeSQL
}
