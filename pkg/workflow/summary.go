package workflow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dukex/insight/pkg/models"
)

func summarizeState(state models.WorkflowState) string {
	parts := []string{fmt.Sprintf("input=%d chars", utf8.RuneCountInString(state.UserInput))}

	if state.QueryType != models.QueryTypeUnset {
		parts = append(parts, "query_type="+string(state.QueryType))
	}

	if state.SQLTaskType != models.SQLTaskUnset {
		parts = append(parts, "sql_task_type="+string(state.SQLTaskType))
	}

	if state.StructuredData.HasRows() {
		parts = append(parts, fmt.Sprintf("rows=%d", len(state.StructuredData.Rows)))
	}

	if state.Answer != "" {
		parts = append(parts, fmt.Sprintf("answer=%d chars", utf8.RuneCountInString(state.Answer)))
	}

	return strings.Join(parts, " ")
}

func summarizeUpdate(update models.Update) string {
	var parts []string

	if update.QueryType != nil {
		parts = append(parts, "query_type="+string(*update.QueryType))
	}

	if update.SQLTaskType != nil {
		parts = append(parts, "sql_task_type="+string(*update.SQLTaskType))
	}

	if data := update.StructuredData; data != nil {
		parts = append(parts, fmt.Sprintf("rows=%d documents=%d", len(data.Rows), len(data.Documents)))
	}

	if update.ChartConfig != nil {
		parts = append(parts, fmt.Sprintf("chart=%s points=%d", update.ChartConfig.Type, len(update.ChartConfig.Labels)))
	}

	if update.ChartImage != nil {
		parts = append(parts, fmt.Sprintf("chart_image=%t", *update.ChartImage != ""))
	}

	if update.Answer != nil {
		parts = append(parts, fmt.Sprintf("answer=%d chars", utf8.RuneCountInString(*update.Answer)))
	}

	if update.QualityScore != nil {
		parts = append(parts, fmt.Sprintf("quality_score=%d", *update.QualityScore))
	}

	if update.RetryCount != nil {
		parts = append(parts, fmt.Sprintf("retry_count=%d", *update.RetryCount))
	}

	if update.Error != nil {
		parts = append(parts, "error="+*update.Error)
	}

	if len(parts) == 0 {
		return "no changes"
	}

	return strings.Join(parts, " ")
}
