// Package api exposes the legal document assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/seanblong/lexora/internal/auth"
	"github.com/seanblong/lexora/internal/metrics"
	"github.com/seanblong/lexora/internal/store"
	"github.com/seanblong/lexora/pkg/models"
)

const (
	defaultListLimit    = 50
	defaultAnswersLimit = 20
	// DefaultMaxUploadBytes bounds a single multipart upload.
	DefaultMaxUploadBytes = 50 << 20
)

// Searcher answers questions and summarizes ad-hoc text.
type Searcher interface {
	Answer(ctx context.Context, question string, k int, docType string) models.Answer
	Summarize(ctx context.Context, text, question string) (string, error)
}

// DocumentStore is the part of the vector store served to clients.
type DocumentStore interface {
	Count(ctx context.Context, f store.Filter) (int, error)
	List(ctx context.Context, limit int, f store.Filter) ([]models.Chunk, error)
	ListTypes(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context, f store.Filter) error
	Answers(ctx context.Context, limit int) ([]models.AnswerRecord, error)
	Ping(ctx context.Context) error
}

// Uploader ingests a saved file into the store.
type Uploader interface {
	Upload(ctx context.Context, path, source, docType string) (int, error)
}

// Options tunes a Server. Zero values select defaults.
type Options struct {
	CORSOrigins    []string
	DefaultK       int
	MaxUploadBytes int64
	// Supported filters upload filenames before anything is written to disk.
	Supported func(name string) bool
	Auth      *auth.Authenticator
}

type Server struct {
	search   Searcher
	store    DocumentStore
	uploader Uploader
	logger   zerolog.Logger
	opts     Options
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, st DocumentStore, up Uploader, logger zerolog.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{search: search, store: st, uploader: up, logger: logger, opts: opts}
}

// Handler builds the router with logging, metrics, CORS and auth applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("dur", dur).
			Msg("http")
	}))
	r.Use(metrics.Middleware())
	r.Use(s.cors().Handler)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.opts.Auth.OptionalMiddleware)

		r.Post("/upload", s.handleUpload)
		r.Post("/query", s.handleQuery)
		r.Post("/summarize", s.handleSummarize)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/count", s.handleCount)
			r.Get("/list", s.handleList)
			r.Get("/types", s.handleTypes)
			r.Post("/clear", s.handleClear)
		})
		r.Get("/answers", s.handleAnswers)
	})

	return r
}

func (s *Server) cors() *cors.Cors {
	wildcard := false
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		// Cookies are only sent to explicitly listed origins.
		AllowCredentials: !wildcard,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Status: "error", Message: msg})
}
