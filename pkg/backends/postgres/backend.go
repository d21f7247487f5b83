// Package postgres answers structured questions against PostgreSQL tables. A text generator writes
// the SELECT statement, which is guarded to the datasource's tables and run in a read-only transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/insight/pkg/backends"
	"github.com/dukex/insight/pkg/llmjson"
	"github.com/dukex/insight/pkg/models"
	"github.com/lib/pq"
)

const defaultMaxRows = 200

const schemaQuery = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ANY($1)
ORDER BY table_name, ordinal_position`

type Backend struct {
	db        *sql.DB
	generator backends.TextGenerator
	maxRows   int
	logger    *slog.Logger
}

var _ backends.StructuredQuery = (*Backend)(nil)

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, generator backends.TextGenerator, logger *slog.Logger) (*Backend, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, generator, logger), nil
}

func New(db *sql.DB, generator backends.TextGenerator, logger *slog.Logger) *Backend {
	return &Backend{
		db:        db,
		generator: generator,
		maxRows:   defaultMaxRows,
		logger:    logger.With("module", "postgres_backend"),
	}
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// Query turns text into SQL and runs it. Statement failures are reported in the result; generator
// and connection failures are returned as errors.
func (b *Backend) Query(ctx context.Context, text string, datasource models.Datasource) (*backends.QueryResult, error) {
	if len(datasource.TableRefs) == 0 {
		return &backends.QueryResult{Success: false, Error: "datasource has no tables"}, nil
	}

	if b.generator == nil {
		return nil, backends.ErrGeneratorUnavailable
	}

	schema := b.describe(ctx, datasource.TableRefs)

	generated, err := b.generator.Generate(ctx, buildPrompt(text, schema))
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	statement := llmjson.StripCodeFence(generated)

	if err := Guard(statement, datasource.TableRefs); err != nil {
		b.logger.WarnContext(ctx, "Rejected generated SQL", "sql", statement, "error", err)

		return &backends.QueryResult{Success: false, Error: err.Error()}, nil
	}

	b.logger.DebugContext(ctx, "Running generated SQL", "sql", statement)

	data, err := b.run(ctx, statement)
	if err != nil {
		return &backends.QueryResult{Success: false, Error: err.Error()}, nil
	}

	result := &backends.QueryResult{Success: true, Data: data}
	if len(data.Rows) == 0 {
		result.Answer = "The query returned no rows."
	}

	return result, nil
}

func (b *Backend) describe(ctx context.Context, tables []string) string {
	rows, err := b.db.QueryContext(ctx, schemaQuery, pq.Array(tables))
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to describe tables", "error", err)

		return "Tables: " + strings.Join(tables, ", ")
	}

	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	columns := make(map[string][]string)
	order := make([]string, 0, len(tables))

	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			b.logger.WarnContext(ctx, "Failed to scan column", "error", err)

			continue
		}

		if _, seen := columns[table]; !seen {
			order = append(order, table)
		}

		columns[table] = append(columns[table], column+" "+dataType)
	}

	if len(order) == 0 {
		return "Tables: " + strings.Join(tables, ", ")
	}

	var sb strings.Builder
	for _, table := range order {
		fmt.Fprintf(&sb, "%s(%s)\n", table, strings.Join(columns[table], ", "))
	}

	return sb.String()
}

func (b *Backend) run(ctx context.Context, statement string) (backends.TabularData, error) {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return backends.TabularData{}, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			b.logger.ErrorContext(ctx, "failed to rollback", "error", err)
		}
	}()

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return backends.TabularData{}, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return backends.TabularData{}, fmt.Errorf("failed to read columns: %w", err)
	}

	data := backends.TabularData{Columns: columns, Rows: [][]string{}}

	for rows.Next() && len(data.Rows) < b.maxRows {
		values := make([]sql.NullString, len(columns))

		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}

		if err := rows.Scan(targets...); err != nil {
			return backends.TabularData{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]string, len(columns))
		for i, value := range values {
			row[i] = value.String
		}

		data.Rows = append(data.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return backends.TabularData{}, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return data, nil
}

func buildPrompt(question string, schema string) string {
	return fmt.Sprintf(`Write one PostgreSQL SELECT statement answering the question below.
Use only these tables:
%s
Return only the SQL, without explanation.

Question: %s`, schema, question)
}
