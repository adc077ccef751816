package schema

import (
	"context"
	"database/sql"
	"strings"
)

const (
	infoSchemaTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`

	infoSchemaColumnsSQL = `SELECT column_name, data_type, is_nullable FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`

	postgresPrimaryKeySQL = `SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = current_schema() AND tc.table_name = $1
ORDER BY kcu.ordinal_position`

	// Referenced columns are paired through the referenced unique constraint
	// by position, so composite keys keep their column order.
	postgresForeignKeysSQL = `SELECT kcu.constraint_name, kcu.column_name, ref.table_name, ref.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
JOIN information_schema.referential_constraints rc
  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.constraint_schema
JOIN information_schema.key_column_usage ref
  ON ref.constraint_name = rc.unique_constraint_name AND ref.constraint_schema = rc.unique_constraint_schema
  AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema() AND tc.table_name = $1
ORDER BY kcu.constraint_name, kcu.ordinal_position`
)

type postgresIntrospector struct{}

func (postgresIntrospector) version(ctx context.Context, db *sql.DB) (string, error) {
	return queryVersion(ctx, db, "SELECT version()")
}

func (postgresIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, infoSchemaTablesSQL)
}

func (postgresIntrospector) describe(ctx context.Context, db *sql.DB, table *Table) error {
	if err := scanInfoSchemaColumns(ctx, db, table); err != nil {
		return err
	}
	pk, err := queryStrings(ctx, db, postgresPrimaryKeySQL, table.Name)
	if err != nil {
		return err
	}
	table.PrimaryKey = pk
	return nil
}

func (postgresIntrospector) constraints(ctx context.Context, db *sql.DB, table *Table) error {
	return scanForeignKeys(ctx, db, table, postgresForeignKeysSQL, table.Name)
}

func scanInfoSchemaColumns(ctx context.Context, db *sql.DB, table *Table) error {
	rows, err := db.QueryContext(ctx, infoSchemaColumnsSQL, table.Name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var column Column
		var nullable string
		if err := rows.Scan(&column.Name, &column.Type, &nullable); err != nil {
			return err
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		table.Columns = append(table.Columns, column)
	}
	return rows.Err()
}
