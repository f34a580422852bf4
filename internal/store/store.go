// Package store persists chunk embeddings and answer history behind a
// pluggable Backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seanblong/lexora/internal/ai"
	"github.com/seanblong/lexora/pkg/models"
)

var (
	// ErrBackendUnavailable wraps every failure of the storage or embedding
	// backend.
	ErrBackendUnavailable = errors.New("vector store unavailable")
	// ErrValidation is returned for malformed writes. Nothing is written.
	ErrValidation = errors.New("invalid chunk batch")
)

// Filter restricts operations to chunks with matching metadata. Empty fields
// match anything.
type Filter struct {
	DocType string
	Source  string
}

// IsEmpty reports whether f matches every chunk.
func (f Filter) IsEmpty() bool {
	return f.DocType == "" && f.Source == ""
}

// Match reports whether c satisfies f.
func (f Filter) Match(c models.Chunk) bool {
	return (f.DocType == "" || c.DocType == f.DocType) &&
		(f.Source == "" || c.Source == f.Source)
}

// Record is a chunk and its embedding.
type Record struct {
	Chunk  models.Chunk
	Vector []float32
}

// Backend is a storage engine for chunk records and answer history.
// Search returns at most k results ordered by ascending cosine distance.
// List returns chunks in insertion order; an overwritten id keeps its place.
type Backend interface {
	Migrate(ctx context.Context, dim int) error
	Upsert(ctx context.Context, recs []Record) error
	Search(ctx context.Context, vec []float32, k int, f Filter) ([]models.SearchResult, error)
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, limit int, f Filter) ([]models.Chunk, error)
	Delete(ctx context.Context, f Filter) error
	DocTypes(ctx context.Context) ([]string, error)
	SaveAnswer(ctx context.Context, rec models.AnswerRecord) error
	Answers(ctx context.Context, limit int) ([]models.AnswerRecord, error)
	ClearAnswers(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// VectorStore embeds chunk texts and questions and delegates persistence to
// a Backend.
type VectorStore struct {
	backend  Backend
	embedder ai.Embedder
}

// NewVectorStore returns a VectorStore over backend using embedder.
func NewVectorStore(backend Backend, embedder ai.Embedder) *VectorStore {
	return &VectorStore{backend: backend, embedder: embedder}
}

// Open migrates backend for the embedder's dimension and wraps it.
func Open(ctx context.Context, backend Backend, embedder ai.Embedder) (*VectorStore, error) {
	if err := backend.Migrate(ctx, embedder.Dim()); err != nil {
		return nil, unavailable("migrate", err)
	}
	return NewVectorStore(backend, embedder), nil
}

// AddChunks embeds texts and stores them under ids with metas. ids, texts
// and metas must have equal lengths and no text may be blank. A repeated id
// overwrites the stored chunk.
func (s *VectorStore) AddChunks(ctx context.Context, ids, texts []string, metas []models.ChunkMeta) error {
	if len(ids) != len(texts) || len(ids) != len(metas) {
		return fmt.Errorf("%w: %d ids, %d texts, %d metadata records", ErrValidation, len(ids), len(texts), len(metas))
	}
	if len(ids) == 0 {
		return nil
	}
	for i := range ids {
		if strings.TrimSpace(ids[i]) == "" {
			return fmt.Errorf("%w: empty id at %d", ErrValidation, i)
		}
		if strings.TrimSpace(texts[i]) == "" {
			return fmt.Errorf("%w: empty text for %s", ErrValidation, ids[i])
		}
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return unavailable("embed chunks", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts", ErrBackendUnavailable, len(vecs), len(texts))
	}

	now := time.Now().UTC()
	recs := make([]Record, len(ids))
	for i := range ids {
		docType := metas[i].DocType
		if docType == "" {
			docType = models.DefaultDocType
		}
		recs[i] = Record{
			Chunk: models.Chunk{
				ID:            ids[i],
				Text:          texts[i],
				Source:        metas[i].Source,
				SequenceIndex: metas[i].SequenceIndex,
				TotalChunks:   metas[i].TotalChunks,
				DocType:       docType,
				CreatedAt:     now,
			},
			Vector: vecs[i],
		}
	}

	if err := s.backend.Upsert(ctx, recs); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Count returns the number of chunks matching f.
func (s *VectorStore) Count(ctx context.Context, f Filter) (int, error) {
	n, err := s.backend.Count(ctx, f)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Query returns up to k chunks closest to question, nearest first. An empty
// store yields no results and no error.
func (s *VectorStore) Query(ctx context.Context, question string, k int, f Filter) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, unavailable("embed question", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for the question", ErrBackendUnavailable, len(vecs))
	}

	res, err := s.backend.Search(ctx, vecs[0], k, f)
	if err != nil {
		return nil, unavailable("search", err)
	}
	for i := range res {
		res[i].Query = question
	}
	return res, nil
}

// DeleteAll removes the chunks matching f. An empty filter also clears the
// answer history. Deleting nothing is not an error.
func (s *VectorStore) DeleteAll(ctx context.Context, f Filter) error {
	if err := s.backend.Delete(ctx, f); err != nil {
		return unavailable("delete", err)
	}
	if f.IsEmpty() {
		if err := s.backend.ClearAnswers(ctx); err != nil {
			return unavailable("clear answers", err)
		}
	}
	return nil
}

// ListTypes returns the distinct document types, sorted.
func (s *VectorStore) ListTypes(ctx context.Context) ([]string, error) {
	types, err := s.backend.DocTypes(ctx)
	if err != nil {
		return nil, unavailable("list types", err)
	}
	return types, nil
}

// List returns up to limit chunks matching f in insertion order.
func (s *VectorStore) List(ctx context.Context, limit int, f Filter) ([]models.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	chunks, err := s.backend.List(ctx, limit, f)
	if err != nil {
		return nil, unavailable("list", err)
	}
	return chunks, nil
}

// SaveAnswer persists rec, assigning an id and timestamp when missing.
func (s *VectorStore) SaveAnswer(ctx context.Context, rec models.AnswerRecord) (models.AnswerRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Sources == nil {
		rec.Sources = []models.SourceRef{}
	}
	if err := s.backend.SaveAnswer(ctx, rec); err != nil {
		return rec, unavailable("save answer", err)
	}
	return rec, nil
}

// Answers returns up to limit answer records, newest first.
func (s *VectorStore) Answers(ctx context.Context, limit int) ([]models.AnswerRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	recs, err := s.backend.Answers(ctx, limit)
	if err != nil {
		return nil, unavailable("answers", err)
	}
	return recs, nil
}

// Ping checks backend connectivity.
func (s *VectorStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the backend.
func (s *VectorStore) Close() error {
	return s.backend.Close()
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
}
