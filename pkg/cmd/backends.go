package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/backends/chartrender"
	"github.com/dukex/insight/pkg/backends/httpapi"
	"github.com/dukex/insight/pkg/backends/openai"
	"github.com/dukex/insight/pkg/backends/postgres"
)

// BackendConfig selects the backend adapters. Empty settings leave the adapter absent and the nodes
// fall back to their degraded behavior.
type BackendConfig struct {
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	QueryBackendURL     string
	RetrievalBackendURL string
	ChartBackendURL     string
	DatabaseURL         string
}

// NewBackends connects the configured adapters. The returned closer releases database connections.
// DatabaseURL takes precedence over QueryBackendURL.
func NewBackends(ctx context.Context, cfg BackendConfig, logger *slog.Logger) (backends.Backends, func() error, error) {
	var (
		b       backends.Backends
		closers []func() error
	)

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}

		return errors.Join(errs...)
	}

	if cfg.OpenAIAPIKey != "" {
		opts := []openai.Option{openai.WithLogger(logger)}
		if cfg.OpenAIModel != "" {
			opts = append(opts, openai.WithModel(cfg.OpenAIModel))
		}

		b.Generator = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, opts...)
	} else {
		logger.WarnContext(ctx, "No OpenAI API key configured, nodes will use heuristic fallbacks")
	}

	switch {
	case cfg.DatabaseURL != "":
		backend, err := postgres.Open(ctx, cfg.DatabaseURL, b.Generator, logger)
		if err != nil {
			return backends.Backends{}, closeAll, fmt.Errorf("structured query backend: %w", err)
		}

		closers = append(closers, backend.Close)
		b.Query = backend
	case cfg.QueryBackendURL != "":
		client, err := httpapi.NewQueryClient(cfg.QueryBackendURL, httpapi.WithLogger(logger))
		if err != nil {
			return backends.Backends{}, closeAll, fmt.Errorf("structured query backend: %w", err)
		}

		b.Query = client
	}

	if cfg.RetrievalBackendURL != "" {
		client, err := httpapi.NewRetrievalClient(cfg.RetrievalBackendURL, httpapi.WithLogger(logger))
		if err != nil {
			return backends.Backends{}, closeAll, fmt.Errorf("retrieval backend: %w", err)
		}

		b.Retrieval = client
	}

	if cfg.ChartBackendURL != "" {
		b.Renderer = chartrender.New(cfg.ChartBackendURL, logger)
	}

	return b, closeAll, nil
}
