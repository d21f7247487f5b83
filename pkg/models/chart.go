package models

import "slices"

type ChartType string

const (
	ChartTypeBar      ChartType = "bar"
	ChartTypeLine     ChartType = "line"
	ChartTypePie      ChartType = "pie"
	ChartTypeDoughnut ChartType = "doughnut"
)

func (t ChartType) Valid() bool {
	switch t {
	case ChartTypeBar, ChartTypeLine, ChartTypePie, ChartTypeDoughnut:
		return true
	default:
		return false
	}
}

// ChartDataset is one series of a chart.
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     []string  `json:"borderColor,omitempty"`
	Fill            bool      `json:"fill"`
}

// ChartConfig is the renderer-independent chart specification built by the chart config node.
type ChartConfig struct {
	Type       ChartType      `json:"type"`
	Title      string         `json:"title"`
	XAxisLabel string         `json:"x_axis_label,omitempty"`
	YAxisLabel string         `json:"y_axis_label,omitempty"`
	Labels     []string       `json:"labels"`
	Datasets   []ChartDataset `json:"datasets"`
}

func (c *ChartConfig) Clone() *ChartConfig {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Labels = slices.Clone(c.Labels)
	clone.Datasets = make([]ChartDataset, len(c.Datasets))

	for i, ds := range c.Datasets {
		clone.Datasets[i] = ChartDataset{
			Label:           ds.Label,
			Data:            slices.Clone(ds.Data),
			BackgroundColor: slices.Clone(ds.BackgroundColor),
			BorderColor:     slices.Clone(ds.BorderColor),
			Fill:            ds.Fill,
		}
	}

	return &clone
}
