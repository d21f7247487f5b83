package models

// FailureAnswer is shown to the user when an execution ends with an error.
const FailureAnswer = "Sorry, I could not answer your question because an error occurred while processing it. Please try again later."

// QueryRequest is a question asked against a datasource.
type QueryRequest struct {
	Query      string     `json:"query"      validate:"required,min=1,max=4000"`
	Datasource Datasource `json:"datasource" validate:"required"`
}

// QueryResponse is the caller-facing result of one execution.
type QueryResponse struct {
	ExecutionID  string          `json:"execution_id"`
	Success      bool            `json:"success"`
	Answer       string          `json:"answer"`
	QueryType    QueryType       `json:"query_type"`
	SQLTaskType  SQLTaskType     `json:"sql_task_type,omitempty"`
	Data         *StructuredData `json:"data,omitempty"`
	ChartConfig  *ChartConfig    `json:"chart_config,omitempty"`
	ChartImage   string          `json:"chart_image,omitempty"`
	QualityScore int             `json:"quality_score"`
	RetryCount   int             `json:"retry_count"`
	Error        string          `json:"error,omitempty"`
}

// NewQueryResponse builds the response from a final state.
func NewQueryResponse(executionID string, state WorkflowState) QueryResponse {
	resp := QueryResponse{
		ExecutionID:  executionID,
		Success:      !state.HasError(),
		Answer:       state.Answer,
		QueryType:    state.QueryType,
		SQLTaskType:  state.SQLTaskType,
		Data:         state.StructuredData,
		ChartConfig:  state.ChartConfig,
		QualityScore: state.QualityScore,
		RetryCount:   state.RetryCount,
		Error:        state.Error,
	}

	if state.HasChart() {
		resp.ChartImage = *state.ChartImage
	}

	if !resp.Success {
		resp.Answer = FailureAnswer
	}

	return resp
}

// NewFailedQueryResponse is used when the engine itself refused to run.
func NewFailedQueryResponse(executionID string, err error) QueryResponse {
	return QueryResponse{
		ExecutionID: executionID,
		Success:     false,
		Answer:      FailureAnswer,
		Error:       err.Error(),
	}
}
