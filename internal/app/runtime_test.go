package app

import (
	"context"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/query"
)

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("askdb", func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func TestNewWiresDuckDBRuntime(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"ASKDB_DB_DRIVER":   "duckdb",
		"ASKDB_DB_DSN":      "",
		"ASKDB_AI_PROVIDER": "lmstudio",
	})

	rt, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.Dialect != database.DialectDuckDB {
		t.Fatalf("Dialect = %q", rt.Dialect)
	}
	if rt.Generator.Provider() != "LM Studio" {
		t.Fatalf("Provider() = %q", rt.Generator.Provider())
	}
	if _, err := rt.DB.ExecContext(context.Background(), `CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, text, err := rt.Schema.Get(context.Background())
	if err != nil {
		t.Fatalf("Schema.Get() error = %v", err)
	}
	if !strings.Contains(text, "CREATE TABLE users") {
		t.Fatalf("schema = %q", text)
	}

	result, err := rt.Executor.Execute(context.Background(), query.Request{SQL: "SELECT COUNT(*) AS n FROM users;"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "n" {
		t.Fatalf("columns = %#v", result.Columns)
	}
}

func TestNewRejectsMountsOutsideDuckDB(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"ASKDB_DB_DRIVER":         "mysql",
		"ASKDB_DB_PARQUET_MOUNTS": "events=events.parquet",
		"ASKDB_AI_PROVIDER":       "lmstudio",
	})

	_, err := New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "duckdb") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestNewReportsMissingCredentialBeforeConnecting(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"ASKDB_DB_DRIVER":   "postgres",
		"ASKDB_DB_DSN":      "postgres://nobody@127.0.0.1:1/none",
		"ASKDB_AI_PROVIDER": "deepseek",
	})

	_, err := New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "DeepSeek configuration error") {
		t.Fatalf("New() error = %v", err)
	}
}
