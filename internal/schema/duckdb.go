package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

const duckdbConstraintsSQL = `SELECT constraint_type, constraint_text FROM duckdb_constraints()
WHERE schema_name = current_schema() AND table_name = $1
  AND constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
ORDER BY constraint_index`

var (
	duckdbPrimaryKeyPattern = regexp.MustCompile(`(?i)^PRIMARY KEY\s*\(([^)]*)\)`)
	duckdbForeignKeyPattern = regexp.MustCompile(`(?i)^FOREIGN KEY\s*\(([^)]*)\)\s*REFERENCES\s+([^\s(]+)\s*\(([^)]*)\)`)
)

// duckdbIntrospector shares the information_schema queries with PostgreSQL;
// keys come from duckdb_constraints(), whose constraint_text is the DDL
// fragment that declared them.
type duckdbIntrospector struct{}

func (duckdbIntrospector) version(ctx context.Context, db *sql.DB) (string, error) {
	return queryVersion(ctx, db, "SELECT version()")
}

func (duckdbIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, infoSchemaTablesSQL)
}

func (duckdbIntrospector) describe(ctx context.Context, db *sql.DB, table *Table) error {
	return scanInfoSchemaColumns(ctx, db, table)
}

func (duckdbIntrospector) constraints(ctx context.Context, db *sql.DB, table *Table) error {
	rows, err := db.QueryContext(ctx, duckdbConstraintsSQL, table.Name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, text string
		if err := rows.Scan(&kind, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		switch kind {
		case "PRIMARY KEY":
			if m := duckdbPrimaryKeyPattern.FindStringSubmatch(text); m != nil {
				table.PrimaryKey = splitIdentList(m[1])
			}
		case "FOREIGN KEY":
			m := duckdbForeignKeyPattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			columns, refColumns := splitIdentList(m[1]), splitIdentList(m[3])
			for i, column := range columns {
				fk := ForeignKey{
					Name:            fmt.Sprintf("fk_%s_%s", table.Name, columns[0]),
					Column:          column,
					ReferencedTable: unquoteIdent(m[2]),
				}
				if i < len(refColumns) {
					fk.ReferencedColumn = refColumns[i]
				}
				table.ForeignKeys = append(table.ForeignKeys, fk)
			}
		}
	}
	return rows.Err()
}

func splitIdentList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := unquoteIdent(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func unquoteIdent(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return strings.ReplaceAll(raw[1:len(raw)-1], `""`, `"`)
	}
	return raw
}
