// Package backends defines the adapter contracts the query nodes consume: structured query,
// document retrieval, chart rendering and text generation.
package backends

import (
	"context"
	"errors"

	"github.com/dukex/insight/pkg/models"
)

var (
	// ErrRenderUnavailable marks a network failure or non-success response from the chart renderer.
	ErrRenderUnavailable = errors.New("chart renderer unavailable")

	// ErrGeneratorUnavailable is returned when no text generation backend is configured.
	ErrGeneratorUnavailable = errors.New("text generator unavailable")
)

// TabularData is the table returned by a structured query.
type TabularData struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// QueryResult is the structured-query backend response.
type QueryResult struct {
	Success bool        `json:"success"`
	Answer  string      `json:"answer,omitempty"`
	Data    TabularData `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// RetrievalData carries the documents a retrieval answer was built from.
type RetrievalData struct {
	RetrievedDocuments []models.RetrievedDocument `json:"retrieved_documents"`
}

// RetrievalResult is the document-retrieval backend response.
type RetrievalResult struct {
	Success bool          `json:"success"`
	Answer  string        `json:"answer,omitempty"`
	Data    RetrievalData `json:"data"`
	Error   string        `json:"error,omitempty"`
}

type StructuredQuery interface {
	Query(ctx context.Context, text string, datasource models.Datasource) (*QueryResult, error)
}

type DocumentRetrieval interface {
	Query(ctx context.Context, text string, datasource models.Datasource) (*RetrievalResult, error)
}

// ChartRenderer turns a chart specification into an image reference URL.
type ChartRenderer interface {
	Render(ctx context.Context, config *models.ChartConfig) (string, error)
}

// TextGenerator produces text from a prompt. A nil TextGenerator means the backend is absent.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Backends groups the adapters handed to the default nodes.
type Backends struct {
	Query     StructuredQuery
	Retrieval DocumentRetrieval
	Renderer  ChartRenderer
	Generator TextGenerator
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
