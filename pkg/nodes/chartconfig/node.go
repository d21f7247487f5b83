package chartconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/llmjson"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes"
)

const (
	NodeID = "chart_config"

	// Positions used when no analysis is available.
	FallbackLabelColumn = 2
	FallbackValueColumn = 6

	NoDataLabel  = "No data"
	sampleRows   = 5
	titleLength  = 60
	defaultTitle = "Query result"
)

// Palette is cycled per data point.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Analysis describes how the rows should be charted.
type Analysis struct {
	ChartType    models.ChartType `json:"chart_type"`
	Title        string           `json:"title"`
	XAxisLabel   string           `json:"x_axis_label"`
	YAxisLabel   string           `json:"y_axis_label"`
	LabelColumn  int              `json:"label_column"`
	ValueColumn  int              `json:"value_column"`
	DateColumn   int              `json:"date_column"`
	Aggregation  Aggregation      `json:"aggregation"`
	TimeGrouping TimeGrouping     `json:"time_grouping"`
}

var analysisSchema = llmjson.Schema{
	"type":     "object",
	"required": []any{"chart_type", "label_column", "value_column"},
	"properties": map[string]any{
		"chart_type":    map[string]any{"type": "string", "enum": []any{"bar", "line", "pie", "doughnut"}},
		"title":         map[string]any{"type": "string"},
		"x_axis_label":  map[string]any{"type": "string"},
		"y_axis_label":  map[string]any{"type": "string"},
		"label_column":  map[string]any{"type": "integer", "minimum": 0},
		"value_column":  map[string]any{"type": "integer", "minimum": 0},
		"date_column":   map[string]any{"type": "integer", "minimum": -1},
		"aggregation":   map[string]any{"type": "string", "enum": []any{"none", "sum", "average", "count"}},
		"time_grouping": map[string]any{"type": "string", "enum": []any{"none", "week", "month", "quarter", "year"}},
	},
}

type timeCue struct {
	grouping TimeGrouping
	label    string
	terms    *nodes.Matcher
}

// Checked in order; the first matching cue wins.
var timeCues = []timeCue{
	{GroupingWeek, "Week", nodes.NewMatcher("week", "weekly", "weeks", "周", "星期")},
	{GroupingQuarter, "Quarter", nodes.NewMatcher("quarter", "quarterly", "quarters", "季度")},
	{GroupingMonth, "Month", nodes.NewMatcher("month", "monthly", "months", "月")},
	{GroupingYear, "Year", nodes.NewMatcher("year", "yearly", "years", "annual", "annually", "年")},
}

const promptTemplate = `You configure charts for query results.
Question: %s
Columns (0-based positions): %s
Sample rows:
%s
Reply with a JSON object only:
{"chart_type": "bar|line|pie|doughnut", "title": "...", "x_axis_label": "...", "y_axis_label": "...",
 "label_column": 0, "value_column": 1, "date_column": -1,
 "aggregation": "none|sum|average|count", "time_grouping": "none|week|month|quarter|year"}
Use date_column -1 when no column holds dates.`

// Node turns query rows into a chart configuration.
type Node struct {
	generator backends.TextGenerator
	logger    *slog.Logger
}

// NewNode creates a new chart config node. Without a generator the fallback positions are used.
func NewNode(generator backends.TextGenerator, logger *slog.Logger) *Node {
	return &Node{
		generator: generator,
		logger:    logger.With("module", "chart_config_node"),
	}
}

// ID returns the node ID.
func (n *Node) ID() string {
	return NodeID
}

// Type returns the node type.
func (n *Node) Type() models.NodeType {
	return models.NodeTypeRendering
}

// Writes returns the state fields the node may update.
func (n *Node) Writes() models.FieldSet {
	return models.FieldChartConfig
}

// Execute builds the chart configuration from the structured data.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	var columns []string

	rows := [][]string{}

	if data := state.StructuredData; data != nil {
		columns = data.Columns
		rows = data.Rows

		if len(rows) == 0 && data.Answer != "" {
			rows = ParseProse(data.Answer)
			columns = nil
		}
	}

	analysis, ok := n.analyze(ctx, state.UserInput, columns, rows)
	if ok {
		ApplyCues(&analysis, state.UserInput, rows)
	} else {
		analysis = FallbackAnalysis()
	}

	config := Build(analysis, state.UserInput, columns, rows)

	return models.Update{ChartConfig: config}, nil
}

func (n *Node) analyze(ctx context.Context, question string, columns []string, rows [][]string) (Analysis, bool) {
	if n.generator == nil {
		return Analysis{}, false
	}

	sample := rows[:min(len(rows), sampleRows)]

	encoded, err := json.Marshal(sample)
	if err != nil {
		return Analysis{}, false
	}

	answer, err := n.generator.Generate(ctx, fmt.Sprintf(promptTemplate, question, strings.Join(columns, ", "), encoded))
	if err != nil {
		n.logger.WarnContext(ctx, "Chart analysis failed, using fallback positions", "error", err)

		return Analysis{}, false
	}

	analysis := Analysis{DateColumn: -1, Aggregation: AggregationNone, TimeGrouping: GroupingNone}
	if err := llmjson.Decode(answer, analysisSchema, &analysis); err != nil {
		n.logger.WarnContext(ctx, "Invalid chart analysis, using fallback positions", "error", err)

		return Analysis{}, false
	}

	if width := rowWidth(rows); width > 0 && (analysis.LabelColumn >= width || analysis.ValueColumn >= width) {
		n.logger.WarnContext(ctx, "Chart analysis points outside the rows, using fallback positions",
			"label_column", analysis.LabelColumn, "value_column", analysis.ValueColumn, "width", width)

		return Analysis{}, false
	}

	return analysis, true
}

// FallbackAnalysis is used when the generator is absent or its answer is unusable. It never
// aggregates or groups by time, whatever the question says.
func FallbackAnalysis() Analysis {
	return Analysis{
		ChartType:    models.ChartTypeBar,
		LabelColumn:  FallbackLabelColumn,
		ValueColumn:  FallbackValueColumn,
		DateColumn:   -1,
		Aggregation:  AggregationNone,
		TimeGrouping: GroupingNone,
	}
}

// ApplyCues lets explicit time words in the question override granularity and x-axis label.
func ApplyCues(analysis *Analysis, question string, rows [][]string) {
	for _, cue := range timeCues {
		if !cue.terms.Any(question) {
			continue
		}

		analysis.TimeGrouping = cue.grouping
		analysis.XAxisLabel = cue.label

		if analysis.DateColumn < 0 {
			analysis.DateColumn = DetectDateColumn(rows)
		}

		return
	}
}

// DetectDateColumn returns the first column whose value parses as a date in the first row, or -1.
func DetectDateColumn(rows [][]string) int {
	if len(rows) == 0 {
		return -1
	}

	for i, value := range rows[0] {
		if _, isYear := Year(value); isYear && len(strings.TrimSpace(value)) == 4 {
			// a bare year is as likely a category as a date
			continue
		}

		if _, ok := ParseDate(value); ok {
			return i
		}
	}

	return -1
}

// Build extracts the points and assembles the chart specification.
func Build(analysis Analysis, question string, columns []string, rows [][]string) *models.ChartConfig {
	var points []Point

	if analysis.TimeGrouping != GroupingNone && analysis.DateColumn >= 0 {
		points = ExtractTimeSeries(rows, analysis.DateColumn, analysis.ValueColumn, analysis.TimeGrouping, analysis.Aggregation)
	} else {
		points = ExtractCategories(rows, analysis.LabelColumn, analysis.ValueColumn, analysis.Aggregation)
	}

	chartType := analysis.ChartType
	if !chartType.Valid() {
		chartType = models.ChartTypeBar
	}

	title := analysis.Title
	if title == "" {
		title = defaultTitleFor(question)
	}

	labelIndex, valueIndex := effectiveColumns(analysis, rowWidth(rows))

	xLabel := analysis.XAxisLabel
	if xLabel == "" {
		xLabel = columnName(columns, labelIndex, "Category")
	}

	yLabel := analysis.YAxisLabel
	if yLabel == "" {
		yLabel = columnName(columns, valueIndex, "Value")
	}

	if len(points) == 0 {
		chartType = models.ChartTypeBar
		points = []Point{{Label: NoDataLabel, Value: 0}}
	}

	labels := make([]string, len(points))
	data := make([]float64, len(points))
	colors := make([]string, len(points))

	for i, p := range points {
		labels[i] = p.Label
		data[i] = p.Value
		colors[i] = Palette[i%len(Palette)]
	}

	return &models.ChartConfig{
		Type:       chartType,
		Title:      title,
		XAxisLabel: xLabel,
		YAxisLabel: yLabel,
		Labels:     labels,
		Datasets: []models.ChartDataset{
			{
				Label:           yLabel,
				Data:            data,
				BackgroundColor: colors,
				BorderColor:     colors,
				Fill:            false,
			},
		},
	}
}

func defaultTitleFor(question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return defaultTitle
	}

	return nodes.Truncate(question, titleLength)
}

func columnName(columns []string, index int, fallback string) string {
	if index >= 0 && index < len(columns) && columns[index] != "" {
		return columns[index]
	}

	return fallback
}

// effectiveColumns mirrors the positions ExtractCategories reads for rows of the given width.
func effectiveColumns(analysis Analysis, width int) (int, int) {
	switch {
	case width == 2:
		return 0, 1
	case width > 0:
		return clampLabel(analysis.LabelColumn, width), clampColumn(analysis.ValueColumn, width)
	default:
		return analysis.LabelColumn, analysis.ValueColumn
	}
}

func rowWidth(rows [][]string) int {
	if len(rows) == 0 {
		return 0
	}

	return len(rows[0])
}
