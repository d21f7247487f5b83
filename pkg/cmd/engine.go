package cmd

import (
	"log/slog"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/broadcast"
	"github.com/dukex/insight/pkg/observer"
	"github.com/dukex/insight/pkg/registry"
	"github.com/dukex/insight/pkg/tracker"
	"github.com/dukex/insight/pkg/workflow"
)

// Observers are the lifecycle sinks attached to an engine. Nil entries are skipped.
type Observers struct {
	Tracker     *tracker.Tracker
	Broadcaster *broadcast.Broadcaster
	Extra       []observer.Observer
}

// NewEngine builds the query graph from reg and wires the observers in a fixed order: logging,
// tracker, broadcaster, then the extras.
func NewEngine(reg *registry.Registry, b backends.Backends, observers Observers, workerID string, logger *slog.Logger) (*workflow.Engine, error) {
	graph, err := workflow.NewQueryGraph(reg, b)
	if err != nil {
		return nil, err
	}

	sinks := []observer.Observer{observer.NewLogging(logger)}

	if observers.Tracker != nil {
		sinks = append(sinks, observers.Tracker)
	}

	if observers.Broadcaster != nil {
		sinks = append(sinks, observers.Broadcaster)
	}

	sinks = append(sinks, observers.Extra...)

	return workflow.NewEngine(graph,
		workflow.WithObserver(observer.NewMulti(logger, sinks...)),
		workflow.WithLogger(logger),
		workflow.WithWorkerID(workerID),
	), nil
}
