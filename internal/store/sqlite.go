package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/seanblong/lexora/internal/store/migrations"
	"github.com/seanblong/lexora/internal/vecblob"
	"github.com/seanblong/lexora/pkg/models"
)

// SQLite is a Backend storing chunks in a local SQLite file. Vectors are
// little-endian float32 blobs and search is a brute-force cosine scan.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) lexora.db inside dataDir.
func NewSQLite(dataDir string) (*SQLite, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "lexora.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &SQLite{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Migrate applies pending migrations and pins the embedding dimension.
func (s *SQLite) Migrate(ctx context.Context, dim int) error {
	if err := s.migrate(ctx, migrations.FS); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('embedding_dim', ?)`, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording embedding dimension: %w", err)
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'embedding_dim'`).Scan(&stored); err != nil {
		return fmt.Errorf("reading embedding dimension: %w", err)
	}
	if stored != strconv.Itoa(dim) {
		return fmt.Errorf("embedding dimension %d does not match existing index (%s); clear the data directory or use the original provider", dim, stored)
	}
	return nil
}

func (s *SQLite) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLite) Upsert(ctx context.Context, recs []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, source, sequence_index, total_chunks, doc_type, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			text           = excluded.text,
			source         = excluded.source,
			sequence_index = excluded.sequence_index,
			total_chunks   = excluded.total_chunks,
			doc_type       = excluded.doc_type,
			embedding      = excluded.embedding,
			created_at     = excluded.created_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		c := r.Chunk
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Text, c.Source, c.SequenceIndex, c.TotalChunks, c.DocType,
			vecblob.Encode(r.Vector), c.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// sqliteWhere renders f as a WHERE clause with positional arguments.
func sqliteWhere(f Filter) (string, []any) {
	clauses := []string{"1 = 1"}
	var args []any
	if f.DocType != "" {
		clauses = append(clauses, "doc_type = ?")
		args = append(args, f.DocType)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	return strings.Join(clauses, " AND "), args
}

const sqliteChunkCols = "seq, id, text, source, sequence_index, total_chunks, doc_type, created_at"

func scanSQLiteChunk(sc interface{ Scan(...any) error }, extra ...any) (models.Chunk, int64, error) {
	var c models.Chunk
	var seq int64
	var created string
	dest := append([]any{&seq, &c.ID, &c.Text, &c.Source, &c.SequenceIndex, &c.TotalChunks, &c.DocType, &created}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return c, 0, err
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		c.CreatedAt = t
	}
	return c, seq, nil
}

func (s *SQLite) Search(ctx context.Context, vec []float32, k int, f Filter) ([]models.SearchResult, error) {
	where, args := sqliteWhere(f)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sqliteChunkCols+", embedding FROM chunks WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []scored
	for rows.Next() {
		var blob []byte
		c, seq, err := scanSQLiteChunk(rows, &blob)
		if err != nil {
			return nil, err
		}
		v, err := vecblob.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		cands = append(cands, scored{chunk: c, dist: cosineDistance(vec, v), seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(cands, k), nil
}

func (s *SQLite) Count(ctx context.Context, f Filter) (int, error) {
	where, args := sqliteWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE "+where, args...).Scan(&n)
	return n, err
}

func (s *SQLite) List(ctx context.Context, limit int, f Filter) ([]models.Chunk, error) {
	where, args := sqliteWhere(f)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sqliteChunkCols+" FROM chunks WHERE "+where+" ORDER BY seq LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Chunk{}
	for rows.Next() {
		c, _, err := scanSQLiteChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, f Filter) error {
	where, args := sqliteWhere(f)
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE "+where, args...)
	return err
}

func (s *SQLite) DocTypes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT doc_type FROM chunks ORDER BY doc_type")
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

func (s *SQLite) SaveAnswer(ctx context.Context, rec models.AnswerRecord) error {
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (id, question, answer, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Question, rec.Answer, string(sources), rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLite) Answers(ctx context.Context, limit int) ([]models.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, sources, created_at FROM answers ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AnswerRecord{}
	for rows.Next() {
		var rec models.AnswerRecord
		var sources, created string
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &sources, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
			return nil, fmt.Errorf("answer %s: unmarshalling sources: %w", rec.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) ClearAnswers(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM answers")
	return err
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return errors.New("database not open")
	}
	return s.db.Close()
}
