// Package httpapi implements the structured-query and document-retrieval backends as JSON services
// reached over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 512

	QueryPath     = "/query"
	RetrievalPath = "/retrieve"
)

var (
	ErrBaseURLInvalid = errors.New("invalid backend base URL")
	ErrBackendStatus  = errors.New("backend returned non-success status")
)

type request struct {
	Query      string            `json:"query"`
	Datasource models.Datasource `json:"datasource"`
}

// Client posts queries to a backend service and decodes its JSON answer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func newClient(baseURL string, module string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrBaseURLInvalid, baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("module", module, "base_url", baseURL)

	return c, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%w: status %d: %s", ErrBackendStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// QueryClient answers structured questions through POST {base}/query.
type QueryClient struct {
	*Client
}

var _ backends.StructuredQuery = (*QueryClient)(nil)

func NewQueryClient(baseURL string, opts ...Option) (*QueryClient, error) {
	client, err := newClient(baseURL, "query_backend", opts...)
	if err != nil {
		return nil, err
	}

	return &QueryClient{Client: client}, nil
}

func (c *QueryClient) Query(ctx context.Context, text string, datasource models.Datasource) (*backends.QueryResult, error) {
	c.logger.DebugContext(ctx, "Sending structured query", "datasource_id", datasource.ID)

	var result backends.QueryResult
	if err := c.post(ctx, QueryPath, request{Query: text, Datasource: datasource}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// RetrievalClient answers document questions through POST {base}/retrieve.
type RetrievalClient struct {
	*Client
}

var _ backends.DocumentRetrieval = (*RetrievalClient)(nil)

func NewRetrievalClient(baseURL string, opts ...Option) (*RetrievalClient, error) {
	client, err := newClient(baseURL, "retrieval_backend", opts...)
	if err != nil {
		return nil, err
	}

	return &RetrievalClient{Client: client}, nil
}

func (c *RetrievalClient) Query(ctx context.Context, text string, datasource models.Datasource) (*backends.RetrievalResult, error) {
	c.logger.DebugContext(ctx, "Sending retrieval query", "datasource_id", datasource.ID)

	var result backends.RetrievalResult
	if err := c.post(ctx, RetrievalPath, request{Query: text, Datasource: datasource}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
