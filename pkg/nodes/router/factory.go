// Package router provides the node that chooses between the structured-data and document paths.
package router

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
	return "Router"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Classifies the question as a structured-data (sql) or document (rag) question"
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
