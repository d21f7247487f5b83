package retry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/insight/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Execute(t *testing.T) {
	node := NewNode(slog.Default())

	state := models.NewWorkflowState("q", models.Datasource{})
	state.QualityScore = 4
	state.Error = "stale"

	for attempt := 1; attempt <= models.MaxRetries; attempt++ {
		update, err := node.Execute(context.Background(), state)
		require.NoError(t, err)
		require.NoError(t, update.Validate(node.Writes()))

		state.Apply(update)
		assert.Equal(t, attempt, state.RetryCount)
		assert.False(t, state.HasError())
		assert.False(t, Exhausted(state))
	}

	update, err := node.Execute(context.Background(), state)
	require.NoError(t, err)
	require.NoError(t, update.Validate(node.Writes()))
	assert.Nil(t, update.RetryCount)

	state.Apply(update)
	assert.Equal(t, Apology, state.Answer)
	assert.Equal(t, models.MaxQualityScore, state.QualityScore)
	assert.Equal(t, models.MaxRetries, state.RetryCount)
	assert.True(t, Exhausted(state))
}
