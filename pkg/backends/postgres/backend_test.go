package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/backends/postgres"
	"github.com/dukex/insight/pkg/models"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupBackend(t *testing.T, sqlText string) (*postgres.Backend, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("insight_test"),
		tcpostgres.WithUsername("insight"),
		tcpostgres.WithPassword("insight"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `CREATE TABLE orders (month text, total numeric)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO orders VALUES ('2024-01', 120.5), ('2024-02', 98), ('2024-03', NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE secrets (value text)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	generator := backends.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "orders(month text, total numeric)")

		return sqlText, nil
	})

	backend, err := postgres.Open(ctx, databaseURL, generator, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, backend.Close())
	})

	return backend, ctx
}

func TestBackend_Query(t *testing.T) {
	backend, ctx := setupBackend(t, "```sql\nSELECT month, total FROM orders ORDER BY month\n```")

	result, err := backend.Query(ctx, "monthly totals", models.Datasource{ID: "ds", Type: "database", TableRefs: []string{"orders"}})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, []string{"month", "total"}, result.Data.Columns)
	assert.Equal(t, [][]string{{"2024-01", "120.5"}, {"2024-02", "98"}, {"2024-03", ""}}, result.Data.Rows)
}

func TestBackend_RejectsForeignTable(t *testing.T) {
	backend, ctx := setupBackend(t, "SELECT value FROM secrets")

	result, err := backend.Query(ctx, "show secrets", models.Datasource{ID: "ds", Type: "database", TableRefs: []string{"orders"}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "secrets")
}
