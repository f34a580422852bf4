package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/seanblong/lexora/pkg/models"
)

// Postgres is a Backend on PostgreSQL with the pgvector extension.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at url.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: p}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies necessary database migrations and schema setup.
func (s *Postgres) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  seq            BIGSERIAL,
  id             TEXT PRIMARY KEY,
  text           TEXT NOT NULL,
  source         TEXT NOT NULL,
  sequence_index INT NOT NULL,
  total_chunks   INT NOT NULL,
  doc_type       TEXT NOT NULL DEFAULT 'general',
  embedding      vector(%d) NOT NULL,
  created_at     TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chunks_seq_idx ON chunks (seq);
CREATE INDEX IF NOT EXISTS chunks_doc_type_idx ON chunks (doc_type);
CREATE INDEX IF NOT EXISTS chunks_source_idx ON chunks (source);
CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS answers (
  seq        BIGSERIAL,
  id         TEXT PRIMARY KEY,
  question   TEXT NOT NULL,
  answer     TEXT NOT NULL,
  sources    JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// Upsert writes all records in one batch; a conflicting id is overwritten
// in place.
func (s *Postgres) Upsert(ctx context.Context, recs []Record) error {
	const q = `
		INSERT INTO chunks (id, text, source, sequence_index, total_chunks, doc_type, embedding, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			text           = EXCLUDED.text,
			source         = EXCLUDED.source,
			sequence_index = EXCLUDED.sequence_index,
			total_chunks   = EXCLUDED.total_chunks,
			doc_type       = EXCLUDED.doc_type,
			embedding      = EXCLUDED.embedding,
			created_at     = EXCLUDED.created_at;`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range recs {
		c := r.Chunk
		batch.Queue(q, c.ID, c.Text, c.Source, c.SequenceIndex, c.TotalChunks, c.DocType,
			pgvector.NewVector(r.Vector), c.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgWhere renders f as a WHERE clause whose placeholders start at $next.
func pgWhere(f Filter, next int) (string, []any) {
	where := "TRUE"
	var args []any
	if f.DocType != "" {
		where += fmt.Sprintf(" AND doc_type = $%d", next)
		args = append(args, f.DocType)
		next++
	}
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", next)
		args = append(args, f.Source)
	}
	return where, args
}

const pgChunkCols = "id, text, source, sequence_index, total_chunks, doc_type, created_at"

func (s *Postgres) Search(ctx context.Context, vec []float32, k int, f Filter) ([]models.SearchResult, error) {
	where, fargs := pgWhere(f, 3)
	args := append([]any{pgvector.NewVector(vec), k}, fargs...)

	q := fmt.Sprintf(`
SELECT %s, GREATEST(embedding <=> $1, 0) AS distance
FROM chunks
WHERE %s
ORDER BY embedding <=> $1, seq
LIMIT $2`, pgChunkCols, where)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SearchResult{}
	for rows.Next() {
		var r models.SearchResult
		c := &r.Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.SequenceIndex, &c.TotalChunks, &c.DocType, &c.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context, f Filter) (int, error) {
	where, args := pgWhere(f, 1)
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks WHERE "+where, args...).Scan(&n)
	return n, err
}

func (s *Postgres) List(ctx context.Context, limit int, f Filter) ([]models.Chunk, error) {
	where, fargs := pgWhere(f, 2)
	args := append([]any{limit}, fargs...)

	rows, err := s.pool.Query(ctx,
		"SELECT "+pgChunkCols+" FROM chunks WHERE "+where+" ORDER BY seq LIMIT $1", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Chunk{}
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.SequenceIndex, &c.TotalChunks, &c.DocType, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) Delete(ctx context.Context, f Filter) error {
	where, args := pgWhere(f, 1)
	_, err := s.pool.Exec(ctx, "DELETE FROM chunks WHERE "+where, args...)
	return err
}

// DocTypes returns a list of all unique document types in the database.
func (s *Postgres) DocTypes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT doc_type FROM chunks ORDER BY doc_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Postgres) SaveAnswer(ctx context.Context, rec models.AnswerRecord) error {
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO answers (id, question, answer, sources, created_at) VALUES ($1, $2, $3, $4::jsonb, $5)`,
		rec.ID, rec.Question, rec.Answer, string(sources), rec.CreatedAt)
	return err
}

func (s *Postgres) Answers(ctx context.Context, limit int) ([]models.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question, answer, sources::text, created_at FROM answers ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AnswerRecord{}
	for rows.Next() {
		var rec models.AnswerRecord
		var sources string
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &sources, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.NewDecoder(strings.NewReader(sources)).Decode(&rec.Sources); err != nil {
			return nil, fmt.Errorf("answer %s: unmarshalling sources: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) ClearAnswers(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM answers")
	return err
}

// Ping checks the database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
