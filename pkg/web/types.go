package web

import "github.com/dukex/insight/pkg/models"

// SubmitQueryRequest is the body of POST /queries.
type SubmitQueryRequest struct {
	models.QueryRequest

	Async bool `json:"async"`
}

// SubmitQueryResponse is returned for asynchronous submissions.
type SubmitQueryResponse struct {
	ExecutionID string `json:"execution_id"`
	EventsURL   string `json:"events_url"`
	ResultURL   string `json:"result_url"`
}
