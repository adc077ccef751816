// Package sqldb runs queries over any database/sql connection pool.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
)

type Executor struct {
	DB *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{DB: db}
}

// Execute runs request.SQL as-is and reads at most RowLimit rows. The limit
// is applied while scanning rather than by rewriting the statement, so
// statements that do not return rows pass through unchanged.
func (e *Executor) Execute(ctx context.Context, request query.Request) (result query.Result, err error) {
	start := time.Now()
	defer func() {
		observability.ObserveQueryExecution(len(result.Rows), time.Since(start), err)
	}()

	sqlText := query.StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.DB == nil {
		return query.Result{}, fmt.Errorf("database is required")
	}

	rows, err := e.DB.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if request.RowLimit > 0 && len(resultRows) >= request.RowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
