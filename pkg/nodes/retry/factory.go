// Package retry provides the node that bounds the answer/validation loop.
package retry

import "github.com/dukex/insight/pkg/protocol"

// NodeFactory creates Node instances.
type NodeFactory struct{}

// Create creates a new Node from the shared dependencies.
func (f *NodeFactory) Create(deps protocol.Dependencies) (protocol.Node, error) {
	return NewNode(deps.Logger), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return NodeID
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Retry"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Sends a low-quality answer back to synthesis, or apologizes once the retries are used up"
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
