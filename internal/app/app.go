// Package app wires configuration into the providers, store and services
// shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seanblong/lexora/internal/ai"
	"github.com/seanblong/lexora/internal/chunker"
	"github.com/seanblong/lexora/internal/config"
	"github.com/seanblong/lexora/internal/ingest"
	"github.com/seanblong/lexora/internal/search"
	"github.com/seanblong/lexora/internal/store"
)

// App holds the long-lived components built from a configuration.
type App struct {
	Client   ai.Client
	Store    *store.VectorStore
	Ingestor *ingest.Ingestor
	Uploader *ingest.Uploader
	Search   *search.Service

	closers []func() error
}

// NewLogger builds the JSON root logger for level and installs it as the
// global logger.
func NewLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

func provider(name string) ai.Provider {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "google":
		return ai.ProviderVertexAI
	default:
		return ai.Provider(p)
	}
}

// ClientConfig maps configuration onto the AI client settings.
func ClientConfig(cfg config.Specification) *ai.ClientConfig {
	cc := &ai.ClientConfig{
		Provider:     provider(cfg.Provider),
		APIKey:       cfg.APIKey,
		EmbedModel:   cfg.EmbedModel,
		SummaryModel: cfg.SummaryModel,
		Dim:          cfg.Dim,
		ProjectID:    cfg.ProjectID,
		Location:     cfg.Location,
		OllamaURL:    cfg.OllamaURL,
	}
	if cfg.SummaryProvider != "" {
		cc.SummaryProvider = provider(cfg.SummaryProvider)
	}
	return cc
}

// NewBackend opens the configured vector store backend without migrating it.
func NewBackend(ctx context.Context, cfg config.Specification) (store.Backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return store.NewPostgres(ctx, cfg.Database)
	case config.StoreSQLite:
		return store.NewSQLite(cfg.DataDir)
	case config.StoreMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// New builds every component from cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Specification) (*App, error) {
	a := &App{}

	client, err := ai.NewClient(ctx, ClientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}
	if client.Dim() <= 0 {
		return nil, errors.New("embedding dimension must be set")
	}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		client = ai.NewRateLimited(client, cfg.RateLimit, burst)
	}
	if cfg.RedisURL != "" {
		cache, err := ai.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("embedding cache unavailable, continuing without it")
		} else {
			a.closers = append(a.closers, cache.Close)
			ns := fmt.Sprintf("%s:%s:%d", provider(cfg.Provider), cfg.EmbedModel, client.Dim())
			client = ai.NewCachedEmbedder(client, cache, ns)
		}
	}
	a.Client = client

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	a.closers = append(a.closers, backend.Close)

	a.Store, err = store.Open(ctx, backend, client)
	if err != nil {
		a.Close()
		return nil, err
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	var ocr ingest.Recognizer
	if cfg.OCREnabled {
		ocr = ingest.TesseractRecognizer{Language: cfg.OCRLanguage}
	}
	a.Ingestor = ingest.NewIngestor(ch, ocr)
	a.Uploader = &ingest.Uploader{Ingestor: a.Ingestor, Store: a.Store}

	a.Search = search.NewService(client, a.Store)
	if cfg.SummaryTimeout > 0 {
		a.Search.SummaryTimeout = cfg.SummaryTimeout
	}
	a.Search.Provider = string(provider(cfg.Provider))
	if cfg.SummaryProvider != "" {
		a.Search.Provider = string(provider(cfg.SummaryProvider))
	}

	log.Info().
		Str("provider", string(provider(cfg.Provider))).
		Str("summary_provider", a.Search.Provider).
		Int("embedding_dim", client.Dim()).
		Str("store", cfg.Store).
		Strs("extensions", a.Ingestor.Extensions()).
		Msg("components initialized")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
