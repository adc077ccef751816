package schema

import (
	"context"
	"database/sql"
	"strings"
)

const mysqlForeignKeysSQL = `SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

type mysqlIntrospector struct{}

func (mysqlIntrospector) version(ctx context.Context, db *sql.DB) (string, error) {
	return queryVersion(ctx, db, "SELECT VERSION()")
}

func (mysqlIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, "SHOW TABLES")
}

// describe reads DESCRIBE output: Field, Type, Null, Key, Default, Extra.
func (mysqlIntrospector) describe(ctx context.Context, db *sql.DB, table *Table) error {
	rows, err := db.QueryContext(ctx, "DESCRIBE "+quoteMySQLIdent(table.Name))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			field, columnType, null, key string
			defaultValue, extra          sql.NullString
		)
		if err := rows.Scan(&field, &columnType, &null, &key, &defaultValue, &extra); err != nil {
			return err
		}
		table.Columns = append(table.Columns, Column{Name: field, Type: columnType, Nullable: strings.EqualFold(null, "YES")})
		if key == "PRI" {
			table.PrimaryKey = append(table.PrimaryKey, field)
		}
	}
	return rows.Err()
}

func (mysqlIntrospector) constraints(ctx context.Context, db *sql.DB, table *Table) error {
	return scanForeignKeys(ctx, db, table, mysqlForeignKeysSQL, table.Name)
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func scanForeignKeys(ctx context.Context, db *sql.DB, table *Table, statement string, args ...any) error {
	rows, err := db.QueryContext(ctx, statement, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return err
		}
		table.ForeignKeys = append(table.ForeignKeys, fk)
	}
	return rows.Err()
}
