// Package protocol defines the interfaces and contracts for pluggable query nodes.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
)

// Node is one step of the query workflow. It reads a copy of the state and returns the fields it
// changes; it never mutates shared state.
type Node interface {
	ID() string
	Type() models.NodeType

	// Writes returns every state field Execute may set. Updates touching other fields are rejected.
	Writes() models.FieldSet

	Execute(ctx context.Context, state models.WorkflowState) (models.Update, error)
}

// Dependencies are handed to node factories.
type Dependencies struct {
	Backends backends.Backends
	Logger   *slog.Logger
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance wired to the given backends
	Create(deps Dependencies) (Node, error)

	// ID returns the node id used in the workflow graph
	ID() string

	// Name returns the human-readable name for this node
	Name() string

	// Description returns a description of what this node does
	Description() string
}
