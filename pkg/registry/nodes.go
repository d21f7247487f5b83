package registry

import (
	"github.com/dukex/insight/pkg/nodes/chartconfig"
	"github.com/dukex/insight/pkg/nodes/chartrender"
	"github.com/dukex/insight/pkg/nodes/ragquery"
	"github.com/dukex/insight/pkg/nodes/retry"
	"github.com/dukex/insight/pkg/nodes/router"
	"github.com/dukex/insight/pkg/nodes/sqlclassifier"
	"github.com/dukex/insight/pkg/nodes/sqlexecution"
	"github.com/dukex/insight/pkg/nodes/synthesis"
	"github.com/dukex/insight/pkg/nodes/validation"
)

// RegisterDefaultNodes registers all built-in query node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	// Classification
	r.RegisterNode(router.NewNodeFactory())
	r.RegisterNode(sqlclassifier.NewNodeFactory())

	// Structured data and charts
	r.RegisterNode(sqlexecution.NewNodeFactory())
	r.RegisterNode(chartconfig.NewNodeFactory())
	r.RegisterNode(chartrender.NewNodeFactory())

	// Documents
	r.RegisterNode(ragquery.NewNodeFactory())

	// Answer and quality loop
	r.RegisterNode(synthesis.NewNodeFactory())
	r.RegisterNode(validation.NewNodeFactory())
	r.RegisterNode(retry.NewNodeFactory())
}
