package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdb/askdb/internal/app"
	"github.com/askdb/askdb/internal/cli/askdb"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv("askdb")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// Diagnostics go to stderr so they never interleave with query output.
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return askdb.Run(ctx, os.Args[1:], askdb.Options{
		Connect: func(ctx context.Context) (askdb.Services, func(), error) {
			rt, err := app.New(ctx, cfg, logger)
			if err != nil {
				return askdb.Services{}, nil, err
			}
			release := func() {
				if err := rt.Close(); err != nil {
					logger.Warn("close failed", slog.Any("error", err))
				}
			}
			return askdb.Services{Translator: rt.Generator, Schema: rt.Schema, Executor: rt.Executor}, release, nil
		},
		RowLimit: cfg.Database.RowLimit,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
}
