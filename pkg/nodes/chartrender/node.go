package chartrender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

const NodeID = "chart_render"

// Node sends the chart configuration to the renderer.
type Node struct {
	renderer backends.ChartRenderer
	logger   *slog.Logger
}

// NewNode creates a new chart render node.
func NewNode(renderer backends.ChartRenderer, logger *slog.Logger) *Node {
	return &Node{
		renderer: renderer,
		logger:   logger.With("module", "chart_render_node"),
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
	return models.Fields(models.FieldChartImage, models.FieldError)
}

// Execute stores the rendered image reference. An unavailable renderer yields an empty reference
// so the answer is produced without a chart.
func (n *Node) Execute(ctx context.Context, state models.WorkflowState) (models.Update, error) {
	noChart := models.Update{ChartImage: models.Ptr("")}

	if n.renderer == nil || state.ChartConfig == nil {
		n.logger.WarnContext(ctx, "Nothing to render", "has_renderer", n.renderer != nil, "has_config", state.ChartConfig != nil)

		return noChart, nil
	}

	image, err := n.renderer.Render(ctx, state.ChartConfig)
	if err != nil {
		if errors.Is(err, backends.ErrRenderUnavailable) {
			n.logger.WarnContext(ctx, "Chart renderer unavailable, continuing without chart", "error", err)

			return noChart, nil
		}

		reason := err.Error()

		return models.Update{Error: &reason}, nil
	}

	return models.Update{ChartImage: &image}, nil
}
