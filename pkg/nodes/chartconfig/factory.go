// Package chartconfig provides the node that turns query rows into a chart specification.
package chartconfig

import "github.com/dukex/insight/pkg/protocol"

// NodeFactory creates Node instances.
type NodeFactory struct{}

// Create creates a new Node from the shared dependencies.
func (f *NodeFactory) Create(deps protocol.Dependencies) (protocol.Node, error) {
	return NewNode(deps.Backends.Generator, deps.Logger), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return NodeID
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Chart Config"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Infers chart type, axes and aggregation for the query result and extracts the data points"
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
