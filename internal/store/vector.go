package store

import (
	"math"
	"sort"

	"github.com/seanblong/lexora/pkg/models"
)

// cosineDistance returns 1 - cos(a, b), clamped to [0, 2]. Zero vectors are
// at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return math.Max(0, math.Min(2, d))
}

// scored is a brute-force search candidate.
type scored struct {
	chunk models.Chunk
	dist  float64
	seq   int64
}

// topK orders candidates by distance, then insertion order, and keeps k.
func topK(cands []scored, k int) []models.SearchResult {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].seq < cands[j].seq
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]models.SearchResult, len(cands))
	for i, c := range cands {
		out[i] = models.SearchResult{Chunk: c.chunk, Distance: c.dist}
	}
	return out
}
