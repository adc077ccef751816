// Package duckdb exposes parquet objects from an object store as views in a
// DuckDB database so questions can be asked against them.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/storage"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,127}$`)

// Mount maps one view name to the parquet objects backing it. A key ending
// in "/" stands for every .parquet object under that prefix.
type Mount struct {
	Table string
	Keys  []string
}

type MountedTable struct {
	Table   string
	Files   int
	Rows    int64
	Columns []string
}

type Mounted struct {
	Dir    string
	Tables []MountedTable
	ownDir bool
}

// Close removes the downloaded files when the directory was created by
// MountParquet. The views stop working afterwards.
func (m *Mounted) Close() error {
	if m == nil || !m.ownDir {
		return nil
	}
	return os.RemoveAll(m.Dir)
}

// ParseMounts reads "events=a.parquet|b.parquet,users=users/" into mounts.
func ParseMounts(raw string) ([]Mount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var mounts []Mount
	seen := map[string]bool{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		table, keys, ok := strings.Cut(entry, "=")
		table = strings.TrimSpace(table)
		if !ok || !tableNamePattern.MatchString(table) {
			return nil, fmt.Errorf("invalid parquet mount %q", entry)
		}
		if seen[table] {
			return nil, fmt.Errorf("duplicate parquet mount for table %q", table)
		}
		seen[table] = true

		mount := Mount{Table: table}
		for _, key := range strings.Split(keys, "|") {
			if key = strings.TrimSpace(key); key != "" {
				mount.Keys = append(mount.Keys, key)
			}
		}
		if len(mount.Keys) == 0 {
			return nil, fmt.Errorf("parquet mount %q has no objects", table)
		}
		mounts = append(mounts, mount)
	}
	return mounts, nil
}

// MountParquet downloads the objects of every mount into workDir, checks
// that each one is a readable parquet file and creates one view per mount.
// An empty workDir gets a temporary directory that Mounted.Close removes.
func MountParquet(ctx context.Context, db *sql.DB, store storage.ObjectStore, workDir string, mounts []Mount) (*Mounted, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	out := &Mounted{Dir: workDir}
	if workDir == "" {
		dir, err := os.MkdirTemp("", "askdb-parquet-")
		if err != nil {
			return nil, fmt.Errorf("create parquet work dir: %w", err)
		}
		out.Dir = dir
		out.ownDir = true
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet work dir: %w", err)
	}

	for _, mount := range mounts {
		table, err := mountTable(ctx, db, store, out.Dir, mount)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Tables = append(out.Tables, table)
	}
	return out, nil
}

func mountTable(ctx context.Context, db *sql.DB, store storage.ObjectStore, dir string, mount Mount) (MountedTable, error) {
	keys, err := expandKeys(ctx, store, mount.Keys)
	if err != nil {
		return MountedTable{}, fmt.Errorf("resolve objects for table %q: %w", mount.Table, err)
	}
	if len(keys) == 0 {
		return MountedTable{}, fmt.Errorf("no parquet objects found for table %q", mount.Table)
	}

	table := MountedTable{Table: mount.Table}
	localPaths := make([]string, 0, len(keys))
	for index, key := range keys {
		localPath := filepath.Join(dir, fmt.Sprintf("%s_%d.parquet", mount.Table, index))
		if err := download(ctx, store, key, localPath); err != nil {
			return MountedTable{}, err
		}
		rows, columns, err := inspectParquet(localPath)
		if err != nil {
			return MountedTable{}, fmt.Errorf("object %q is not a readable parquet file: %w", key, err)
		}
		if table.Columns == nil {
			table.Columns = columns
		}
		table.Rows += rows
		localPaths = append(localPaths, localPath)
	}
	table.Files = len(localPaths)

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(mount.Table), quoteStringArray(localPaths))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return MountedTable{}, fmt.Errorf("create view for table %q: %w", mount.Table, err)
	}
	return table, nil
}

func expandKeys(ctx context.Context, store storage.ObjectStore, keys []string) ([]string, error) {
	var out []string
	for _, key := range keys {
		if !strings.HasSuffix(key, "/") {
			out = append(out, key)
			continue
		}
		infos, err := store.List(ctx, key)
		if err != nil {
			return nil, err
		}
		var listed []string
		for _, info := range infos {
			if strings.HasSuffix(strings.ToLower(info.Key), ".parquet") {
				listed = append(listed, info.Key)
			}
		}
		sort.Strings(listed)
		out = append(out, listed...)
	}
	return out, nil
}

func download(ctx context.Context, store storage.ObjectStore, key, localPath string) error {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return file.Close()
}

func inspectParquet(path string) (int64, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return 0, nil, err
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return 0, nil, err
	}
	fields := pf.Schema().Fields()
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, field.Name())
	}
	return pf.NumRows(), columns, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
