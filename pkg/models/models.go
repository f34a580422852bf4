package models

import "time"

// DefaultDocType is the tag applied to chunks uploaded without a document type.
const DefaultDocType = "general"

// Chunk is a contiguous span of normalized document text stored for retrieval.
type Chunk struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Source        string    `json:"source"`
	SequenceIndex int       `json:"sequence_index"`
	TotalChunks   int       `json:"total_chunks"`
	DocType       string    `json:"doc_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChunkMeta is the fixed metadata record stored alongside each chunk.
type ChunkMeta struct {
	Source        string `json:"source"`
	SequenceIndex int    `json:"sequence_index"`
	TotalChunks   int    `json:"total_chunks"`
	DocType       string `json:"doc_type"`
}

// Meta returns the metadata portion of the chunk.
func (c Chunk) Meta() ChunkMeta {
	return ChunkMeta{
		Source:        c.Source,
		SequenceIndex: c.SequenceIndex,
		TotalChunks:   c.TotalChunks,
		DocType:       c.DocType,
	}
}

// SearchResult is a chunk retrieved for a query together with its cosine distance.
type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
	Query    string  `json:"query,omitempty"`
}

// SourceRef points at a chunk that supported an answer.
type SourceRef struct {
	ChunkID       string  `json:"chunk_id"`
	Source        string  `json:"source"`
	SequenceIndex int     `json:"sequence_index"`
	Distance      float64 `json:"distance"`
}

// AnswerRecord is the persisted history entry for an answered question.
type AnswerRecord struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Sources   []SourceRef `json:"sources"`
	CreatedAt time.Time   `json:"created_at"`
}

// Answer is the response produced by the retrieval engine.
type Answer struct {
	Answer         string         `json:"answer"`
	UsingDocuments bool           `json:"using_documents"`
	SourceChunks   []SearchResult `json:"source_chunks"`

	// Failure records why the answer was degraded, if it was.
	Failure error `json:"-"`
}

// Refs converts retrieval results into answer source references.
func Refs(results []SearchResult) []SourceRef {
	refs := make([]SourceRef, 0, len(results))
	for _, r := range results {
		refs = append(refs, SourceRef{
			ChunkID:       r.Chunk.ID,
			Source:        r.Chunk.Source,
			SequenceIndex: r.Chunk.SequenceIndex,
			Distance:      r.Distance,
		})
	}
	return refs
}
