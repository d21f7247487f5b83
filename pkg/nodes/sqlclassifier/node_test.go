package sqlclassifier

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Execute(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		noLLM  bool
		input  string
		want   models.SQLTaskType
	}{
		{name: "llm chart", answer: "Chart", input: "total sales", want: models.SQLTaskChart},
		{name: "llm query", answer: "query", input: "plot sales", want: models.SQLTaskQuery},
		{name: "invalid answer uses keywords", answer: "table", input: "plot monthly revenue", want: models.SQLTaskChart},
		{name: "error uses keywords", err: errors.New("down"), input: "show the sales distribution", want: models.SQLTaskChart},
		{name: "no generator defaults to query", noLLM: true, input: "total orders last week", want: models.SQLTaskQuery},
		{name: "partial word does not match", noLLM: true, input: "list barcodes", want: models.SQLTaskQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var generator backends.TextGenerator
			if !tt.noLLM {
				generator = backends.GeneratorFunc(func(context.Context, string) (string, error) {
					return tt.answer, tt.err
				})
			}

			node := NewNode(generator, slog.Default())

			update, err := node.Execute(context.Background(), models.NewWorkflowState(tt.input, models.Datasource{}))
			require.NoError(t, err)
			require.NoError(t, update.Validate(node.Writes()))
			assert.Equal(t, tt.want, *update.SQLTaskType)
		})
	}
}
