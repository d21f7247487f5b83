package ragquery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRetrieval struct {
	mock.Mock
}

func (m *mockRetrieval) Query(ctx context.Context, text string, datasource models.Datasource) (*backends.RetrievalResult, error) {
	args := m.Called(ctx, text, datasource)

	result, _ := args.Get(0).(*backends.RetrievalResult)

	return result, args.Error(1)
}

func ragState() models.WorkflowState {
	return models.NewWorkflowState("what is the refund policy", models.Datasource{ID: "kb", Type: "knowledge_base"})
}

func TestNode_Success(t *testing.T) {
	long := strings.Repeat("政策", 150)

	backend := &mockRetrieval{}
	backend.On("Query", mock.Anything, "what is the refund policy", mock.Anything).Return(&backends.RetrievalResult{
		Success: true,
		Answer:  "Refunds are issued within 5 days.",
		Data: backends.RetrievalData{RetrievedDocuments: []models.RetrievedDocument{
			{Source: "policy.pdf", Preview: long},
			{Source: "faq.md", Preview: "short"},
		}},
	}, nil)

	node := NewNode(backend, slog.Default())

	update, err := node.Execute(context.Background(), ragState())
	require.NoError(t, err)
	require.NoError(t, update.Validate(node.Writes()))

	assert.Equal(t, "Refunds are issued within 5 days.", *update.Answer)
	require.Len(t, update.StructuredData.Documents, 2)
	assert.Equal(t, PreviewLength, utf8.RuneCountInString(update.StructuredData.Documents[0].Preview))
	assert.Equal(t, "short", update.StructuredData.Documents[1].Preview)
	assert.Nil(t, update.Error)
}

func TestNode_Failure(t *testing.T) {
	backend := &mockRetrieval{}
	backend.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("index offline"))

	update, err := NewNode(backend, slog.Default()).Execute(context.Background(), ragState())
	require.NoError(t, err)
	assert.Equal(t, "index offline", *update.Error)
	assert.Nil(t, update.Answer)

	backend = &mockRetrieval{}
	backend.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&backends.RetrievalResult{Success: false, Error: "no index"}, nil)

	update, err = NewNode(backend, slog.Default()).Execute(context.Background(), ragState())
	require.NoError(t, err)
	assert.Equal(t, "no index", *update.Error)
}
