package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/lexora/internal/api"
	"github.com/seanblong/lexora/internal/app"
	"github.com/seanblong/lexora/internal/auth"
	"github.com/seanblong/lexora/internal/config"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("lexora-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	logger.Info().
		Str("provider", cfg.Provider).
		Str("store", cfg.Store).
		Str("log_level", cfg.LogLevel).
		Bool("auth_enabled", cfg.Auth.Enabled).
		Msg("starting lexora api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authn, err := auth.New(cfg.Auth.JwtSecret, cfg.Auth.TokenTTL, cfg.Auth.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize auth")
	}
	if authn.Enabled() {
		logger.Info().Msg("authentication is enabled")
	} else {
		logger.Info().Msg("authentication is disabled - running in open mode")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize components")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	srv := api.NewServer(a.Search, a.Store, a.Uploader, logger, api.Options{
		CORSOrigins: cfg.CORSOrigins,
		DefaultK:    cfg.TopK,
		Supported:   a.Ingestor.Supported,
		Auth:        authn,
	})

	s := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.Addr).Msg("api server listening")
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
