// Package models defines the workflow state threaded through query nodes and the execution records
// observed while a query runs.
package models

import "slices"

// QueryType is the path chosen by the router node.
type QueryType string

const (
	QueryTypeUnset QueryType = ""
	QueryTypeSQL   QueryType = "sql"
	QueryTypeRAG   QueryType = "rag"
)

func (q QueryType) Valid() bool {
	return q == QueryTypeSQL || q == QueryTypeRAG
}

// SQLTaskType is the sub-path chosen by the SQL classifier node.
type SQLTaskType string

const (
	SQLTaskUnset SQLTaskType = ""
	SQLTaskQuery SQLTaskType = "query"
	SQLTaskChart SQLTaskType = "chart"
)

func (t SQLTaskType) Valid() bool {
	return t == SQLTaskQuery || t == SQLTaskChart
}

const (
	// MaxRetries is the ceiling for WorkflowState.RetryCount.
	MaxRetries = 2

	// QualityThreshold is the lowest quality score accepted without a retry.
	QualityThreshold = 8

	MaxQualityScore = 10
)

// Datasource is a handle to a structured table collection or a document knowledge base.
type Datasource struct {
	ID        string   `json:"id"                   validate:"required"`
	Name      string   `json:"name"`
	Type      string   `json:"type"                 validate:"required,oneof=database knowledge_base"`
	TableRefs []string `json:"table_refs,omitempty"`
}

// Restricted returns a copy of the datasource carrying only its own table references.
func (d Datasource) Restricted() Datasource {
	d.TableRefs = slices.Clone(d.TableRefs)

	return d
}

// RetrievedDocument summarizes one document returned by the retrieval backend.
type RetrievedDocument struct {
	Source  string `json:"source"`
	Preview string `json:"preview"`
}

// StructuredData is the tabular (or retrieval) payload gathered by the query nodes.
type StructuredData struct {
	Columns   []string            `json:"columns,omitempty"`
	Rows      [][]string          `json:"rows,omitempty"`
	Answer    string              `json:"answer,omitempty"`
	Documents []RetrievedDocument `json:"retrieved_documents,omitempty"`
}

func (d *StructuredData) HasRows() bool {
	return d != nil && len(d.Rows) > 0
}

func (d *StructuredData) IsEmpty() bool {
	return d == nil || (len(d.Rows) == 0 && d.Answer == "" && len(d.Documents) == 0)
}

func (d *StructuredData) Clone() *StructuredData {
	if d == nil {
		return nil
	}

	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = slices.Clone(row)
	}

	return &StructuredData{
		Columns:   slices.Clone(d.Columns),
		Rows:      rows,
		Answer:    d.Answer,
		Documents: slices.Clone(d.Documents),
	}
}

// DimensionScores are the five 0-10 ratings combined into a quality score.
type DimensionScores struct {
	Relevance    int `json:"relevance"`
	Completeness int `json:"completeness"`
	Accuracy     int `json:"accuracy"`
	Clarity      int `json:"clarity"`
	DataSupport  int `json:"data_support"`
}

// Validation report sources.
const (
	ValidationSourceLLM      = "llm"
	ValidationSourceRules    = "rules"
	ValidationSourceError    = "error"
	ValidationSourceFailsafe = "failsafe"
)

// ValidationReport records how the quality score was obtained.
type ValidationReport struct {
	Scores   DimensionScores `json:"scores"`
	Feedback string          `json:"feedback,omitempty"`
	RawScore int             `json:"raw_score"`
	Source   string          `json:"source"`
}

// WorkflowState is the single record threaded through every node of one execution.
// Nodes never mutate it directly; they return an Update that the engine validates and applies.
type WorkflowState struct {
	UserInput      string            `json:"user_input"`
	QueryType      QueryType         `json:"query_type"`
	SQLTaskType    SQLTaskType       `json:"sql_task_type"`
	StructuredData *StructuredData   `json:"structured_data,omitempty"`
	ChartConfig    *ChartConfig      `json:"chart_config,omitempty"`
	ChartImage     *string           `json:"chart_image,omitempty"`
	Answer         string            `json:"answer"`
	QualityScore   int               `json:"quality_score"`
	RetryCount     int               `json:"retry_count"`
	Datasource     Datasource        `json:"datasource"`
	Error          string            `json:"error,omitempty"`
	Validation     *ValidationReport `json:"validation,omitempty"`
}

func NewWorkflowState(userInput string, datasource Datasource) WorkflowState {
	return WorkflowState{
		UserInput:  userInput,
		Datasource: datasource.Restricted(),
	}
}

func (s WorkflowState) HasError() bool {
	return s.Error != ""
}

// HasChart reports whether a chart image reference was produced.
func (s WorkflowState) HasChart() bool {
	return s.ChartImage != nil && *s.ChartImage != ""
}

// Clone returns a deep copy so a node can read the state without aliasing the engine's copy.
func (s WorkflowState) Clone() WorkflowState {
	clone := s
	clone.Datasource = s.Datasource.Restricted()
	clone.StructuredData = s.StructuredData.Clone()
	clone.ChartConfig = s.ChartConfig.Clone()

	if s.ChartImage != nil {
		image := *s.ChartImage
		clone.ChartImage = &image
	}

	if s.Validation != nil {
		report := *s.Validation
		clone.Validation = &report
	}

	return clone
}

// Ptr returns a pointer to v; used to build Updates.
func Ptr[T any](v T) *T {
	return &v
}
