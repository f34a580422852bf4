package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/lexora/internal/app"
	"github.com/seanblong/lexora/internal/config"
	"github.com/seanblong/lexora/internal/indexer"
)

func main() {
	fs := pflag.NewFlagSet("lexora-indexer", pflag.ExitOnError)
	force := fs.Bool("force", false, "re-ingest documents that are already indexed")
	workers := fs.Int("workers", 0, "number of concurrent ingest workers (0 = number of CPUs, at most 8)")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize components")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	ix := indexer.New(a.Uploader, a.Store, cfg.DocsRoot, cfg.DocType, a.Ingestor.Supported)
	ix.Force = *force
	ix.Workers = *workers

	start := time.Now()
	stats, err := ix.Run(ctx)
	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Str("root", cfg.DocsRoot).
		Str("doc_type", cfg.DocType).
		Int64("files", stats.Files).
		Int64("skipped", stats.Skipped).
		Int64("failed", stats.Failed).
		Int64("chunks", stats.Chunks).
		Dur("dur", time.Since(start)).
		Msg("indexing finished")

	if err != nil || stats.Failed > 0 {
		// os.Exit skips deferred calls.
		_ = a.Close()
		os.Exit(1)
	}
}
