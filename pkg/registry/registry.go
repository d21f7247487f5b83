// Package registry keeps the node factories available to the workflow graph.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/protocol"
)

var ErrNodeNotRegistered = errors.New("node not registered")

type Registry struct {
	logger        *slog.Logger
	mu            sync.RWMutex
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:        log,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode adds a factory, replacing any factory with the same id.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodeFactories[factory.ID()]; exists {
		r.logger.Warn("Replacing registered node", "node_id", factory.ID())
	}

	r.nodeFactories[factory.ID()] = factory
}

// Node returns the factory registered under id.
func (r *Registry) Node(id string) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.nodeFactories[id]

	return factory, ok
}

// CreateNode builds the node registered under id.
func (r *Registry) CreateNode(id string, b backends.Backends) (protocol.Node, error) {
	factory, ok := r.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotRegistered, id)
	}

	node, err := factory.Create(protocol.Dependencies{Backends: b, Logger: r.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create node %s: %w", id, err)
	}

	return node, nil
}

// GetAvailableNodes returns the registered factories ordered by id.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.NodeFactory, 0, len(r.nodeFactories))
	for _, factory := range r.nodeFactories {
		factories = append(factories, factory)
	}

	slices.SortFunc(factories, func(a, b protocol.NodeFactory) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	return factories
}
