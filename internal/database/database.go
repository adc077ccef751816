// Package database opens the target database the questions are asked
// against.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

// DisplayName is how the dialect is named in rendered schemas.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectMySQL:
		return "MySQL"
	case DialectPostgres:
		return "PostgreSQL"
	case DialectDuckDB:
		return "DuckDB"
	}
	return string(d)
}

func (d Dialect) driverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return string(d)
	}
}

func ParseDialect(raw string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(raw))); d {
	case DialectMySQL, DialectPostgres, DialectDuckDB:
		return d, nil
	case "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database dialect %q", raw)
}

type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects and pings the database. DuckDB accepts an empty DSN for an
// in-memory database; the other dialects require one.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if _, err := ParseDialect(string(cfg.Dialect)); err != nil {
		return nil, err
	}
	if cfg.DSN == "" && cfg.Dialect != DialectDuckDB {
		return nil, fmt.Errorf("%s dsn is required", cfg.Dialect)
	}

	db, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Dialect, err)
	}
	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Dialect, err)
	}

	return db, nil
}

func configurePool(db *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
