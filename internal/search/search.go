// Package search answers questions from the stored legal documents.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/lexora/internal/ai"
	"github.com/seanblong/lexora/internal/metrics"
	"github.com/seanblong/lexora/internal/store"
	"github.com/seanblong/lexora/pkg/models"
)

// Fixed answers returned instead of a summary.
const (
	OffTopicMessage    = "Hello, I'm LexoraAI, a legal document assistant. I answer questions related to legal documents and laws. Please upload a legal document and ask legal-related questions to get accurate answers."
	NoDocumentsMessage = "No relevant documents found."
	TimeoutMessage     = "Request timed out. Please try again."
	NotFoundMessage    = "Information not found in provided documents."
	FailureMessage     = "Unable to process your question."
)

const (
	// DefaultK is the number of chunks retrieved when the caller asks for none.
	DefaultK = 5
	// DefaultSummaryTimeout bounds a single summarization call.
	DefaultSummaryTimeout = 60 * time.Second
)

// Retriever is the part of the vector store the engine reads and records to.
type Retriever interface {
	Count(ctx context.Context, f store.Filter) (int, error)
	Query(ctx context.Context, question string, k int, f store.Filter) ([]models.SearchResult, error)
	SaveAnswer(ctx context.Context, rec models.AnswerRecord) (models.AnswerRecord, error)
}

type Service struct {
	Summarizer     ai.Summarizer
	Store          Retriever
	SummaryTimeout time.Duration
	// Provider labels summarization metrics.
	Provider string
}

// NewService creates a new search service with the provided summarizer and store
func NewService(summarizer ai.Summarizer, st Retriever) *Service {
	return &Service{
		Summarizer:     summarizer,
		Store:          st,
		SummaryTimeout: DefaultSummaryTimeout,
		Provider:       "unknown",
	}
}

// Answer runs the gate, retrieval and summarization for question. It always
// returns a well-formed answer; degradations are reported through Failure.
func (s *Service) Answer(ctx context.Context, question string, k int, docType string) models.Answer {
	question = strings.TrimSpace(question)
	logger := log.With().Str("question", question).Logger()

	if !IsOnTopic(question) {
		metrics.QueriesTotal.WithLabelValues("off_topic").Inc()
		logger.Debug().Msg("question rejected by gate")
		return models.Answer{Answer: OffTopicMessage, SourceChunks: []models.SearchResult{}}
	}
	if k <= 0 {
		k = DefaultK
	}
	f := store.Filter{DocType: docType}

	n, err := s.Store.Count(ctx, store.Filter{})
	if err != nil || n == 0 {
		if err != nil {
			logger.Warn().Err(err).Msg("count failed; answering without documents")
		}
		metrics.QueriesTotal.WithLabelValues("no_documents").Inc()
		return models.Answer{Answer: NoDocumentsMessage, SourceChunks: []models.SearchResult{}, Failure: err}
	}

	results, err := s.Store.Query(ctx, question, k, f)
	if err != nil || len(results) == 0 {
		if err != nil {
			logger.Warn().Err(err).Msg("retrieval failed; answering without documents")
		}
		metrics.QueriesTotal.WithLabelValues("no_results").Inc()
		return models.Answer{Answer: NoDocumentsMessage, SourceChunks: []models.SearchResult{}, Failure: err}
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	summary, err := s.summarize(ctx, strings.Join(texts, "\n"), question)

	ans := models.Answer{Answer: summary, UsingDocuments: true, SourceChunks: results, Failure: err}
	outcome := "answered"
	if err != nil {
		outcome = "degraded"
		logger.Warn().Err(err).Int("chunks", len(results)).Msg("summarization failed")
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	logger.Info().
		Str("outcome", outcome).
		Int("chunks", len(results)).
		Bool("legal_keyword", HasLegalKeyword(question)).
		Msg("question answered")

	if _, err := s.Store.SaveAnswer(ctx, models.AnswerRecord{
		Question: question,
		Answer:   ans.Answer,
		Sources:  models.Refs(results),
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record answer")
	}
	return ans
}

// Summarize answers question from text and maps failures to fixed messages.
// The returned error, if any, is the underlying cause.
func (s *Service) Summarize(ctx context.Context, text, question string) (string, error) {
	return s.summarize(ctx, text, question)
}

func (s *Service) summarize(ctx context.Context, text, question string) (string, error) {
	timeout := s.SummaryTimeout
	if timeout <= 0 {
		timeout = DefaultSummaryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	summary, err := s.Summarizer.Summarize(ctx, text, question)
	metrics.SummarizeDuration.WithLabelValues(s.Provider).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(summary) == "" {
		err = ai.ErrEmptySummary
	}
	switch {
	case err == nil:
		return strings.TrimSpace(summary), nil
	case errors.Is(err, context.DeadlineExceeded):
		return TimeoutMessage, err
	case errors.Is(err, ai.ErrInsufficientContext):
		return NotFoundMessage, err
	default:
		return FailureMessage, err
	}
}
