package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/askdb/askdb/internal/database"
)

// Source produces a fresh snapshot of a database schema.
type Source interface {
	Load(ctx context.Context) (Schema, error)
}

type introspector interface {
	version(ctx context.Context, db *sql.DB) (string, error)
	tables(ctx context.Context, db *sql.DB) ([]string, error)
	describe(ctx context.Context, db *sql.DB, table *Table) error
	constraints(ctx context.Context, db *sql.DB, table *Table) error
}

type Loader struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewLoader(db *sql.DB, dialect database.Dialect) *Loader {
	return &Loader{DB: db, Dialect: dialect}
}

func (l *Loader) Load(ctx context.Context) (Schema, error) {
	if l.DB == nil {
		return Schema{}, fmt.Errorf("database is required")
	}
	intro, err := introspectorFor(l.Dialect)
	if err != nil {
		return Schema{}, err
	}

	version, err := intro.version(ctx, l.DB)
	if err != nil {
		return Schema{}, fmt.Errorf("read server version: %w", err)
	}
	names, err := intro.tables(ctx, l.DB)
	if err != nil {
		return Schema{}, fmt.Errorf("list tables: %w", err)
	}

	out := Schema{Dialect: l.Dialect, Version: version, Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		table := Table{Name: name}
		if err := intro.describe(ctx, l.DB, &table); err != nil {
			return Schema{}, fmt.Errorf("describe table %q: %w", name, err)
		}
		if err := intro.constraints(ctx, l.DB, &table); err != nil {
			return Schema{}, fmt.Errorf("read constraints of %q: %w", name, err)
		}
		out.Tables = append(out.Tables, table)
	}
	return out, nil
}

func introspectorFor(dialect database.Dialect) (introspector, error) {
	switch dialect {
	case database.DialectMySQL:
		return mysqlIntrospector{}, nil
	case database.DialectPostgres:
		return postgresIntrospector{}, nil
	case database.DialectDuckDB:
		return duckdbIntrospector{}, nil
	}
	return nil, fmt.Errorf("unsupported database dialect %q", dialect)
}

func queryVersion(ctx context.Context, db *sql.DB, statement string) (string, error) {
	var version string
	if err := db.QueryRowContext(ctx, statement).Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func queryStrings(ctx context.Context, db *sql.DB, statement string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}
