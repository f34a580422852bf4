package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seanblong/lexora/pkg/models"
)

// Memory is an in-process Backend. Contents are lost on exit.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	seq     int64
	chunks  map[string]memEntry
	answers []models.AnswerRecord
}

type memEntry struct {
	chunk models.Chunk
	vec   []float32
	seq   int64
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{chunks: map[string]memEntry{}}
}

func (m *Memory) Migrate(_ context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim != 0 && m.dim != dim {
		return fmt.Errorf("embedding dimension %d does not match existing %d", dim, m.dim)
	}
	m.dim = dim
	return nil
}

func (m *Memory) Upsert(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range recs {
		if m.dim != 0 && len(r.Vector) != m.dim {
			return fmt.Errorf("chunk %s: vector has dimension %d, want %d", r.Chunk.ID, len(r.Vector), m.dim)
		}
	}
	for _, r := range recs {
		e, ok := m.chunks[r.Chunk.ID]
		if !ok {
			m.seq++
			e.seq = m.seq
		}
		e.chunk = r.Chunk
		e.vec = append([]float32(nil), r.Vector...)
		m.chunks[r.Chunk.ID] = e
	}
	return nil
}

func (m *Memory) Search(_ context.Context, vec []float32, k int, f Filter) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cands []scored
	for _, e := range m.chunks {
		if f.Match(e.chunk) {
			cands = append(cands, scored{chunk: e.chunk, dist: cosineDistance(vec, e.vec), seq: e.seq})
		}
	}
	return topK(cands, k), nil
}

func (m *Memory) Count(_ context.Context, f Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.chunks {
		if f.Match(e.chunk) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) List(_ context.Context, limit int, f Filter) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []memEntry
	for _, e := range m.chunks {
		if f.Match(e.chunk) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]models.Chunk, len(entries))
	for i, e := range entries {
		out[i] = e.chunk
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, f Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.chunks {
		if f.Match(e.chunk) {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *Memory) DocTypes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]bool{}
	types := []string{}
	for _, e := range m.chunks {
		if !seen[e.chunk.DocType] {
			seen[e.chunk.DocType] = true
			types = append(types, e.chunk.DocType)
		}
	}
	sort.Strings(types)
	return types, nil
}

func (m *Memory) SaveAnswer(_ context.Context, rec models.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Sources = append([]models.SourceRef{}, rec.Sources...)
	m.answers = append(m.answers, rec)
	return nil
}

func (m *Memory) Answers(_ context.Context, limit int) ([]models.AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.AnswerRecord{}
	for i := len(m.answers) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.answers[i])
	}
	return out, nil
}

func (m *Memory) ClearAnswers(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = nil
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
