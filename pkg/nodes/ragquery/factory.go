// Package ragquery provides the node that answers document questions through the retrieval backend.
package ragquery

import "github.com/dukex/insight/pkg/protocol"

// NodeFactory creates Node instances.
type NodeFactory struct{}

// Create creates a new Node from the shared dependencies.
func (f *NodeFactory) Create(deps protocol.Dependencies) (protocol.Node, error) {
	return NewNode(deps.Backends.Retrieval, deps.Logger), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return NodeID
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "RAG Query"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Retrieves documents from the knowledge base and records the retrieval answer"
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
