// Package workflow drives one query execution through a graph of nodes over a shared state.
package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/protocol"
)

// End is the terminal pseudo-node.
const End = "__end__"

var (
	ErrInvalidGraph = errors.New("invalid workflow graph")
	ErrInvalidRoute = errors.New("router returned an undeclared target")
)

// RouterFunc picks the next node from the state after a node ran.
type RouterFunc func(state models.WorkflowState) string

type edge struct {
	router  RouterFunc
	targets []string
}

type transition struct {
	from string
	to   string
}

// Graph is the static node graph. Build it once and share it between executions.
type Graph struct {
	nodes map[string]protocol.Node
	entry string
	edges map[string]edge
	loops map[transition]int
	errs  []error
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]protocol.Node),
		edges: make(map[string]edge),
		loops: make(map[transition]int),
	}
}

func (g *Graph) AddNode(node protocol.Node) *Graph {
	if node == nil {
		g.errs = append(g.errs, errors.New("nil node"))

		return g
	}

	if node.ID() == End {
		g.errs = append(g.errs, fmt.Errorf("node id %q is reserved", End))

		return g
	}

	if _, exists := g.nodes[node.ID()]; exists {
		g.errs = append(g.errs, fmt.Errorf("duplicate node %q", node.ID()))

		return g
	}

	g.nodes[node.ID()] = node

	return g
}

func (g *Graph) SetEntry(id string) *Graph {
	g.entry = id

	return g
}

// AddEdge adds an unconditional transition.
func (g *Graph) AddEdge(from, to string) *Graph {
	return g.addEdge(from, edge{
		router:  func(models.WorkflowState) string { return to },
		targets: []string{to},
	})
}

// AddConditionalEdge adds a transition chosen by router among targets.
func (g *Graph) AddConditionalEdge(from string, router RouterFunc, targets ...string) *Graph {
	if router == nil {
		g.errs = append(g.errs, fmt.Errorf("nil router on %q", from))

		return g
	}

	return g.addEdge(from, edge{router: router, targets: targets})
}

// AddLoopEdge bounds how many times the from→to transition may be taken in one execution. The
// transition itself must be declared by AddEdge or AddConditionalEdge.
func (g *Graph) AddLoopEdge(from, to string, maxTraversals int) *Graph {
	if maxTraversals < 1 {
		g.errs = append(g.errs, fmt.Errorf("loop %s→%s needs a positive bound", from, to))

		return g
	}

	g.loops[transition{from, to}] = maxTraversals

	return g
}

func (g *Graph) addEdge(from string, e edge) *Graph {
	if _, exists := g.edges[from]; exists {
		g.errs = append(g.errs, fmt.Errorf("node %q already has outgoing edges", from))

		return g
	}

	g.edges[from] = e

	return g
}

// Validate reports construction errors, a missing entry, and edges referring to unknown nodes.
func (g *Graph) Validate() error {
	errs := slices.Clone(g.errs)

	if g.entry == "" {
		errs = append(errs, errors.New("entry node not set"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q not found", g.entry))
	}

	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}

		if len(e.targets) == 0 {
			errs = append(errs, fmt.Errorf("edge from %q has no targets", from))
		}

		for _, to := range e.targets {
			if _, ok := g.nodes[to]; !ok && to != End {
				errs = append(errs, fmt.Errorf("edge %s→%s targets unknown node", from, to))
			}
		}
	}

	for loop := range g.loops {
		e, ok := g.edges[loop.from]
		if !ok || !slices.Contains(e.targets, loop.to) {
			errs = append(errs, fmt.Errorf("loop %s→%s is not a declared transition", loop.from, loop.to))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}

	return nil
}

// next resolves the transition out of from. A node without outgoing edges ends the execution.
func (g *Graph) next(from string, state models.WorkflowState) (string, error) {
	e, ok := g.edges[from]
	if !ok {
		return End, nil
	}

	to := e.router(state)
	if !slices.Contains(e.targets, to) {
		return End, fmt.Errorf("%w: %s→%q", ErrInvalidRoute, from, to)
	}

	return to, nil
}

func (g *Graph) loopBound(from, to string) (int, bool) {
	bound, ok := g.loops[transition{from, to}]

	return bound, ok
}

// Node returns the node registered under id.
func (g *Graph) Node(id string) (protocol.Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}
