package workflow

import (
	"fmt"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/dukex/insight/pkg/nodes/chartconfig"
	"github.com/dukex/insight/pkg/nodes/chartrender"
	"github.com/dukex/insight/pkg/nodes/ragquery"
	"github.com/dukex/insight/pkg/nodes/retry"
	"github.com/dukex/insight/pkg/nodes/router"
	"github.com/dukex/insight/pkg/nodes/sqlclassifier"
	"github.com/dukex/insight/pkg/nodes/sqlexecution"
	"github.com/dukex/insight/pkg/nodes/synthesis"
	"github.com/dukex/insight/pkg/nodes/validation"
	"github.com/dukex/insight/pkg/registry"
)

var queryNodes = []string{
	router.NodeID,
	sqlclassifier.NodeID,
	sqlexecution.NodeID,
	chartconfig.NodeID,
	chartrender.NodeID,
	ragquery.NodeID,
	synthesis.NodeID,
	validation.NodeID,
	retry.NodeID,
}

// NewQueryGraph wires the default query workflow from the nodes in reg.
func NewQueryGraph(reg *registry.Registry, b backends.Backends) (*Graph, error) {
	g := NewGraph()

	for _, id := range queryNodes {
		node, err := reg.CreateNode(id, b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
		}

		g.AddNode(node)
	}

	g.SetEntry(router.NodeID).
		AddConditionalEdge(router.NodeID, RouteQueryType, sqlclassifier.NodeID, ragquery.NodeID, validation.NodeID).
		AddConditionalEdge(sqlclassifier.NodeID, RouteSQLTask, synthesis.NodeID, sqlexecution.NodeID, validation.NodeID).
		AddConditionalEdge(sqlexecution.NodeID, onErrorTo(validation.NodeID, chartconfig.NodeID), chartconfig.NodeID, validation.NodeID).
		AddConditionalEdge(chartconfig.NodeID, onErrorTo(validation.NodeID, chartrender.NodeID), chartrender.NodeID, validation.NodeID).
		AddConditionalEdge(chartrender.NodeID, onErrorTo(validation.NodeID, synthesis.NodeID), synthesis.NodeID, validation.NodeID).
		AddConditionalEdge(ragquery.NodeID, onErrorTo(validation.NodeID, synthesis.NodeID), synthesis.NodeID, validation.NodeID).
		AddEdge(synthesis.NodeID, validation.NodeID).
		AddConditionalEdge(validation.NodeID, RouteValidation, retry.NodeID, End).
		AddConditionalEdge(retry.NodeID, RouteRetry, synthesis.NodeID, End).
		AddLoopEdge(retry.NodeID, synthesis.NodeID, models.MaxRetries)

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

func RouteQueryType(state models.WorkflowState) string {
	switch {
	case state.HasError():
		return validation.NodeID
	case state.QueryType == models.QueryTypeRAG:
		return ragquery.NodeID
	default:
		return sqlclassifier.NodeID
	}
}

// RouteSQLTask sends chart requests through query execution; plain queries go straight to synthesis.
func RouteSQLTask(state models.WorkflowState) string {
	switch {
	case state.HasError():
		return validation.NodeID
	case state.SQLTaskType == models.SQLTaskChart:
		return sqlexecution.NodeID
	default:
		return synthesis.NodeID
	}
}

// RouteValidation ends errored executions and accepted answers. Low scores are retried; on the last
// attempt a forced passing score still goes to retry when the raw score failed, so the retry node
// can apologize.
func RouteValidation(state models.WorkflowState) string {
	if state.HasError() {
		return End
	}

	raw := state.QualityScore
	if state.Validation != nil {
		raw = state.Validation.RawScore
	}

	switch {
	case state.QualityScore < models.QualityThreshold && state.RetryCount < models.MaxRetries:
		return retry.NodeID
	case state.RetryCount >= models.MaxRetries && raw < models.QualityThreshold:
		return retry.NodeID
	default:
		return End
	}
}

func RouteRetry(state models.WorkflowState) string {
	if retry.Exhausted(state) {
		return End
	}

	return synthesis.NodeID
}

func onErrorTo(errorTarget, target string) RouterFunc {
	return func(state models.WorkflowState) string {
		if state.HasError() {
			return errorTarget
		}

		return target
	}
}
