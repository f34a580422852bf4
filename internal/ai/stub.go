package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StubClient is an offline Client. Embeddings are hashed bag-of-words
// vectors, so texts sharing words land close together; summaries are
// extractive.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 384
	}
	return &StubClient{dim: dim}
}

// Embed implements the embedding functionality
func (s *StubClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *StubClient) vector(text string) []float32 {
	v := make([]float32, s.dim)
	for _, w := range tokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		v[int(sum>>1)%s.dim] += sign
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// Empty input still needs a unit vector for cosine distance.
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Summarize returns the context sentences that share words with the question.
func (s *StubClient) Summarize(ctx context.Context, contextText, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := BuildPrompt(contextText, question); err != nil {
		return "", err
	}

	want := map[string]bool{}
	for _, w := range tokens(question) {
		if len(w) > 3 {
			want[w] = true
		}
	}

	var picked []string
	for _, line := range strings.Split(truncate(contextText, MaxContextChars), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, w := range tokens(line) {
			if want[w] {
				picked = append(picked, line)
				break
			}
		}
		if len(picked) == 5 {
			break
		}
	}
	if len(picked) == 0 {
		return "This information is not available in the provided documents.", nil
	}
	for i := range picked {
		picked[i] = string(rune('1'+i)) + ". " + picked[i]
	}
	return strings.Join(picked, "\n"), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
