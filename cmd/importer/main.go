package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/benefit-finder/internal/bootstrap"
	"github.com/kirillkom/benefit-finder/internal/config"
	"github.com/kirillkom/benefit-finder/internal/observability/logging"
)

func main() {
	reindexAll := flag.Bool("all", false, "index the whole corpus in-process after the import")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-all] [benefits.xlsx]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("importer", cfg.LogLevel)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.NArg() == 0 && !*reindexAll {
		flag.Usage()
		os.Exit(2)
	}

	app, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if path := flag.Arg(0); path != "" {
		if err := importFile(ctx, app, path); err != nil {
			logger.Error("import_failed", "path", path, "error", err)
			os.Exit(1)
		}
	}

	if *reindexAll {
		indexed, err := app.Indexer.IndexAll(ctx)
		if err != nil {
			logger.Error("reindex_failed", "indexed", indexed, "error", err)
			os.Exit(1)
		}
		logger.Info("reindex_completed", "indexed", indexed)
	}
}

func importFile(ctx context.Context, app *bootstrap.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := app.Importer.Import(ctx, f)
	if err != nil {
		return err
	}
	app.Logger.Info("import_completed",
		"path", path,
		"rows", report.Rows,
		"upserted", report.Upserted,
		"skipped", report.Skipped,
		"published", report.Published,
	)
	return nil
}
