package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/query"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type queryResponse struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	Truncated  bool     `json:"truncated"`
	DurationMs int64    `json:"duration_ms"`
}

// handleQuery runs caller-supplied SQL. The requested row limit may lower the
// server limit but never raise it.
func handleQuery(deps Dependencies, serverLimit int, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query executor is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if request.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "row_limit must be >= 0", false, nil)
		return
	}

	limit := serverLimit
	if request.RowLimit > 0 && (limit == 0 || request.RowLimit < limit) {
		limit = request.RowLimit
	}

	result, err := deps.Executor.Execute(r.Context(), query.Request{SQL: request.SQL, RowLimit: limit})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:    result.Columns,
		Rows:       rows,
		RowCount:   len(rows),
		Truncated:  result.Truncated,
		DurationMs: result.Duration.Milliseconds(),
	})
}
