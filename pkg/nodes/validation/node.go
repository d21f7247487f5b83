package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/llmjson"
	"github.com/dukex/insight/pkg/models"
)

const (
	NodeID = "validation"

	// FailSafeScore is used when scoring itself breaks, and for answers accepted after the last retry.
	FailSafeScore = 8
)

var assessmentSchema = llmjson.Schema{
	"type":     "object",
	"required": []any{"relevance", "completeness", "accuracy", "clarity", "data_support"},
	"properties": map[string]any{
		"relevance":    dimension,
		"completeness": dimension,
		"accuracy":     dimension,
		"clarity":      dimension,
		"data_support": dimension,
		"feedback":     map[string]any{"type": "string"},
	},
}

var dimension = map[string]any{"type": "integer", "minimum": 0, "maximum": 10}

type assessment struct {
	Relevance    int    `json:"relevance"`
	Completeness int    `json:"completeness"`
	Accuracy     int    `json:"accuracy"`
	Clarity      int    `json:"clarity"`
	DataSupport  int    `json:"data_support"`
	Feedback     string `json:"feedback"`
}

const promptTemplate = `Rate the answer to the user's question on five dimensions from 0 to 10.
Question: %s
Answer: %s
Data available: %t
Chart shown: %t
Reply with a JSON object only:
{"relevance": 0, "completeness": 0, "accuracy": 0, "clarity": 0, "data_support": 0, "feedback": "one sentence on how to improve"}`

// Node scores the answer and reports the score.
type Node struct {
	generator backends.TextGenerator
	logger    *slog.Logger
}

// NewNode creates a new validation node.
func NewNode(generator backends.TextGenerator, logger *slog.Logger) *Node {
	return &Node{
		generator: generator,
		logger:    logger.With("module", "validation_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeValidation
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.Fields(models.FieldQualityScore, models.FieldValidation)
}

// Execute scores the answer. Errored executions score zero.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	if state.HasError() {
		return update(0, &models.ValidationReport{RawScore: 0, Source: models.ValidationSourceError}), nil
	}

	report, err := n.score(ctx, state)
	if err != nil {
		n.logger.ErrorContext(ctx, "Scoring failed, accepting answer", "error", err)

		return update(FailSafeScore, &models.ValidationReport{RawScore: FailSafeScore, Source: models.ValidationSourceFailsafe}), nil
	}

	score := report.RawScore
	if state.RetryCount >= models.MaxRetries {
		score = FailSafeScore
	}

	return update(score, report), nil
}

func (n *Node) score(ctx context.Context, state models.WorkflowState) (report *models.ValidationReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("scoring panicked: %v", r)
		}
	}()

	if scores, feedback, ok := n.assess(ctx, state); ok {
		return &models.ValidationReport{
			Scores:   scores,
			Feedback: feedback,
			RawScore: Weighted(scores),
			Source:   models.ValidationSourceLLM,
		}, nil
	}

	scores := RuleScores(state)

	return &models.ValidationReport{
		Scores:   scores,
		RawScore: Weighted(scores),
		Source:   models.ValidationSourceRules,
	}, nil
}

func (n *Node) assess(ctx context.Context, state models.WorkflowState) (models.DimensionScores, string, bool) {
	if n.generator == nil {
		return models.DimensionScores{}, "", false
	}

	prompt := fmt.Sprintf(promptTemplate, state.UserInput, state.Answer, !state.StructuredData.IsEmpty(), state.HasChart())

	answer, err := n.generator.Generate(ctx, prompt)
	if err != nil {
		n.logger.WarnContext(ctx, "Self-assessment failed, using rule-based scores", "error", err)

		return models.DimensionScores{}, "", false
	}

	var result assessment
	if err := llmjson.Decode(answer, assessmentSchema, &result); err != nil {
		n.logger.WarnContext(ctx, "Invalid self-assessment, using rule-based scores", "error", err)

		return models.DimensionScores{}, "", false
	}

	scores := clampScores(models.DimensionScores{
		Relevance:    result.Relevance,
		Completeness: result.Completeness,
		Accuracy:     result.Accuracy,
		Clarity:      result.Clarity,
		DataSupport:  result.DataSupport,
	})

	return scores, result.Feedback, true
}

func update(score int, report *models.ValidationReport) models.Update {
	return models.Update{QualityScore: &score, Validation: report}
}

// FailSafe accepts the answer when the node itself fails.
func (n *Node) FailSafe(state models.WorkflowState, _ error) models.Update {
	if state.HasError() {
		return update(0, &models.ValidationReport{Source: models.ValidationSourceError})
	}

	return update(FailSafeScore, &models.ValidationReport{RawScore: FailSafeScore, Source: models.ValidationSourceFailsafe})
}
