package validation

import (
	"math"
	"unicode/utf8"

	"github.com/dukex/insight/pkg/models"
)

// Dimension weights; they sum to 1.
const (
	WeightRelevance    = 0.30
	WeightCompleteness = 0.20
	WeightAccuracy     = 0.20
	WeightClarity      = 0.15
	WeightDataSupport  = 0.15
)

const (
	substantialAnswer = 50
	detailedAnswer    = 200
)

// Weighted combines the dimension scores, rounding half away from zero and clamping to [0, 10].
func Weighted(s models.DimensionScores) int {
	total := WeightRelevance*float64(s.Relevance) +
		WeightCompleteness*float64(s.Completeness) +
		WeightAccuracy*float64(s.Accuracy) +
		WeightClarity*float64(s.Clarity) +
		WeightDataSupport*float64(s.DataSupport)

	return Clamp(int(math.Round(total)))
}

// Clamp keeps score within [0, 10].
func Clamp(score int) int {
	return max(0, min(models.MaxQualityScore, score))
}

// RuleScores estimates the dimensions from observable properties of the state.
func RuleScores(state models.WorkflowState) models.DimensionScores {
	length := utf8.RuneCountInString(state.Answer)
	hasData := !state.StructuredData.IsEmpty()

	var scores models.DimensionScores

	switch {
	case length > substantialAnswer:
		scores.Relevance = 8
	case length > 0:
		scores.Relevance = 5
	}

	if hasData {
		scores.Completeness = 8
	} else if length > substantialAnswer {
		scores.Completeness = 6
	} else {
		scores.Completeness = 3
	}

	if !state.HasError() {
		scores.Accuracy = 8
	}

	switch {
	case length > detailedAnswer:
		scores.Clarity = 8
	case length > 0:
		scores.Clarity = 6
	}

	switch {
	case state.HasChart():
		scores.DataSupport = 9
	case hasData:
		scores.DataSupport = 7
	default:
		scores.DataSupport = 3
	}

	return scores
}

func clampScores(s models.DimensionScores) models.DimensionScores {
	return models.DimensionScores{
		Relevance:    Clamp(s.Relevance),
		Completeness: Clamp(s.Completeness),
		Accuracy:     Clamp(s.Accuracy),
		Clarity:      Clamp(s.Clarity),
		DataSupport:  Clamp(s.DataSupport),
	}
}
