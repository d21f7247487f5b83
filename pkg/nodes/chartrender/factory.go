// Package chartrender provides the node that renders the chart specification into an image reference.
package chartrender

import "github.com/dukex/insight/pkg/protocol"

// NodeFactory creates Node instances.
type NodeFactory struct{}

// Create creates a new Node from the shared dependencies.
func (f *NodeFactory) Create(deps protocol.Dependencies) (protocol.Node, error) {
	return NewNode(deps.Backends.Renderer, deps.Logger), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return NodeID
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Chart Render"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Sends the chart specification to the rendering service and stores the image reference"
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
