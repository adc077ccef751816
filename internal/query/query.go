// Package query executes generated SQL against the target database.
package query

import (
	"context"
	"strings"
	"time"
)

type Request struct {
	SQL string
	// RowLimit caps the rows read from the result set; zero reads all rows.
	RowLimit int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// StripTrailingSemicolons removes statement terminators so a query can be
// sent as a single statement.
func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
