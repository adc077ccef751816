// Package app wires configuration into the database, schema cache, generator
// and executor shared by the askdb binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/nl2sql"
	duckdbmount "github.com/askdb/askdb/internal/query/duckdb"
	"github.com/askdb/askdb/internal/query/sqldb"
	"github.com/askdb/askdb/internal/schema"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

type Runtime struct {
	Dialect   database.Dialect
	DB        *sql.DB
	Schema    *schema.Cache
	Generator *nl2sql.Generator
	Executor  *sqldb.Executor
	Mounted   *duckdbmount.Mounted

	closers []io.Closer
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dialect, err := database.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	mounts, err := duckdbmount.ParseMounts(cfg.Database.ParquetMounts)
	if err != nil {
		return nil, fmt.Errorf("invalid ASKDB_DB_PARQUET_MOUNTS: %w", err)
	}
	if len(mounts) > 0 && dialect != database.DialectDuckDB {
		return nil, fmt.Errorf("parquet mounts require the duckdb driver, got %s", dialect)
	}

	// The backend is built first so a missing credential fails before any
	// database connection is made.
	backend, err := nl2sql.NewBackend(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Dialect: dialect}
	if closer, ok := backend.(io.Closer); ok {
		rt.closers = append(rt.closers, closer)
	}

	db, err := database.Open(ctx, database.Config{
		Dialect:         dialect,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.DB = db
	rt.closers = append(rt.closers, db)
	logger.Info("connected to database", slog.String("dialect", dialect.DisplayName()))

	if len(mounts) > 0 {
		if err := rt.mountParquet(ctx, cfg, mounts, logger); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	rt.Schema = schema.NewCache(schema.NewLoader(db, dialect), cfg.Schema.RefreshInterval)
	rt.Executor = sqldb.NewExecutor(db)
	rt.Generator = nl2sql.NewGenerator(backend, conversation.NewStore(), cfg.AI.Timeout, logger)
	logger.Info("sql generator ready",
		slog.String("provider", rt.Generator.Provider()),
		slog.String("model", rt.Generator.Model()),
	)
	return rt, nil
}

func (r *Runtime) mountParquet(ctx context.Context, cfg config.Config, mounts []duckdbmount.Mount, logger *slog.Logger) error {
	store, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return fmt.Errorf("initialize object store: %w", err)
	}
	mounted, err := duckdbmount.MountParquet(ctx, r.DB, store, cfg.Database.WorkDir, mounts)
	if err != nil {
		return err
	}
	r.Mounted = mounted
	r.closers = append(r.closers, mounted)
	for _, table := range mounted.Tables {
		logger.Info("mounted parquet table",
			slog.String("table", table.Table),
			slog.Int("files", table.Files),
			slog.Int64("rows", table.Rows),
		)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
