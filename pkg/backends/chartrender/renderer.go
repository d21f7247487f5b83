// Package chartrender renders chart specifications through a QuickChart-compatible HTTP service.
package chartrender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

const (
	CreatePath     = "/chart/create"
	defaultWidth   = 800
	defaultHeight  = 500
	defaultTimeout = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid chart config")

type axisTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type scale struct {
	Title axisTitle `json:"title"`
}

// Document is the Chart.js configuration sent to the render service.
type Document struct {
	Type    models.ChartType `json:"type"`
	Data    chartData        `json:"data"`
	Options chartOptions     `json:"options"`
}

type chartData struct {
	Labels   []string              `json:"labels"`
	Datasets []models.ChartDataset `json:"datasets"`
}

type chartOptions struct {
	Plugins struct {
		Title axisTitle `json:"title"`
	} `json:"plugins"`
	Scales map[string]scale `json:"scales,omitempty"`
}

type createRequest struct {
	Chart           Document `json:"chart"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Format          string  `json:"format"`
	BackgroundColor string  `json:"backgroundColor"`
}

type createResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type Renderer struct {
	baseURL    string
	httpClient *http.Client
	width      int
	height     int
	logger     *slog.Logger
}

var _ backends.ChartRenderer = (*Renderer)(nil)

func New(baseURL string, logger *slog.Logger) *Renderer {
	return &Renderer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		width:      defaultWidth,
		height:     defaultHeight,
		logger:     logger.With("module", "chart_renderer"),
	}
}

// Payload converts a chart config into the Chart.js document the render service expects.
func Payload(config *models.ChartConfig) Document {
	doc := Document{
		Type: config.Type,
		Data: chartData{
			Labels:   config.Labels,
			Datasets: config.Datasets,
		},
	}

	doc.Options.Plugins.Title = axisTitle{Display: config.Title != "", Text: config.Title}

	if config.Type == models.ChartTypeBar || config.Type == models.ChartTypeLine {
		doc.Options.Scales = map[string]scale{
			"x": {Title: axisTitle{Display: config.XAxisLabel != "", Text: config.XAxisLabel}},
			"y": {Title: axisTitle{Display: config.YAxisLabel != "", Text: config.YAxisLabel}},
		}
	}

	return doc
}

// Render returns the image URL for config. Transport failures and non-success answers wrap
// backends.ErrRenderUnavailable.
func (r *Renderer) Render(ctx context.Context, config *models.ChartConfig) (string, error) {
	if config == nil || !config.Type.Valid() {
		return "", ErrInvalidConfig
	}

	body, err := json.Marshal(createRequest{
		Chart:           Payload(config),
		Width:           r.width,
		Height:          r.height,
		Format:          "png",
		BackgroundColor: "white",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+CreatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", backends.ErrRenderUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", backends.ErrRenderUnavailable, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", backends.ErrRenderUnavailable, resp.StatusCode)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: %w", backends.ErrRenderUnavailable, err)
	}

	if !created.Success || created.URL == "" {
		return "", fmt.Errorf("%w: render service reported failure", backends.ErrRenderUnavailable)
	}

	return created.URL, nil
}
