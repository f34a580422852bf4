// Package chunker splits legal documents into retrieval-sized chunks aligned
// to their Section, Clause and Article headings.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultChunkSize is the default maximum chunk length in characters.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of characters shared by consecutive
// size-split chunks.
const DefaultOverlap = 100

// ErrInvalidSize is returned for a non-positive chunk size or an overlap
// outside [0, chunkSize).
var ErrInvalidSize = errors.New("invalid chunk size")

// Chunker splits text on legal headings and bounds chunk length.
type Chunker struct {
	size     int
	overlap  int
	splitter recursiveSplitter
}

// New creates a Chunker producing chunks of at most chunkSize characters.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidSize, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSize, overlap, chunkSize)
	}
	return &Chunker{
		size:     chunkSize,
		overlap:  overlap,
		splitter: recursiveSplitter{size: chunkSize, overlap: overlap},
	}, nil
}

// Split is a convenience wrapper around New and Chunker.Split.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Size returns the configured maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in document order. Headings start new
// chunks; text without headings, and heading spans longer than the chunk
// size, fall back to recursive size-bounded splitting.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var points []int
	for i, line := range lines {
		if IsHeading(line) {
			points = append(points, i)
		}
	}
	if len(points) == 0 {
		return c.splitter.split(text)
	}

	var spans []string
	// Keep any preamble before the first heading.
	if points[0] > 0 {
		spans = append(spans, strings.Join(lines[:points[0]], "\n"))
	}
	for i, start := range points {
		end := len(lines)
		if i+1 < len(points) {
			end = points[i+1]
		}
		spans = append(spans, strings.Join(lines[start:end], "\n"))
	}

	var out []string
	for _, span := range spans {
		span = strings.TrimSpace(span)
		if span == "" {
			continue
		}
		if runeLen(span) > c.size {
			out = append(out, c.splitter.split(span)...)
			continue
		}
		out = append(out, span)
	}
	return out
}
