// Package ingest turns uploaded documents into normalized chunks and writes
// them to the vector store.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/lexora/internal/chunker"
	"github.com/seanblong/lexora/internal/metrics"
	"github.com/seanblong/lexora/pkg/models"
)

// ImageExtensions are the image formats routed to OCR.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// Ingestor extracts, normalizes and chunks source files.
type Ingestor struct {
	chunker    *chunker.Chunker
	extractors map[string]Extractor
}

// NewIngestor registers the PDF, image and plain-text extractors. A nil
// recognizer leaves images unsupported.
func NewIngestor(c *chunker.Chunker, ocr Recognizer) *Ingestor {
	in := &Ingestor{
		chunker:    c,
		extractors: map[string]Extractor{},
	}
	in.Register(".pdf", PDFExtractor{})
	in.Register(".txt", TextExtractor{})
	in.Register(".md", TextExtractor{})
	if ocr != nil {
		for _, ext := range ImageExtensions {
			in.Register(ext, OCRExtractor{Recognizer: ocr})
		}
	}
	return in
}

// Register associates a lower-case extension (with leading dot) with e.
func (in *Ingestor) Register(ext string, e Extractor) {
	in.extractors[strings.ToLower(ext)] = e
}

// Extensions returns the supported extensions in sorted order.
func (in *Ingestor) Extensions() []string {
	exts := make([]string, 0, len(in.extractors))
	for ext := range in.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has an extension with a registered extractor.
func (in *Ingestor) Supported(path string) bool {
	_, ok := in.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Ingest returns the ordered chunks of the document at path.
func (in *Ingestor) Ingest(ctx context.Context, path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := in.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	raw, err := e.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return in.chunker.Split(Normalize(raw)), nil
}

// ChunkWriter persists chunk texts with their ids and metadata.
type ChunkWriter interface {
	AddChunks(ctx context.Context, ids, texts []string, metas []models.ChunkMeta) error
}

// ChunkID returns the identifier of the index-th chunk of source.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", source, index)
}

// Uploader ingests a file and stores its chunks.
type Uploader struct {
	Ingestor *Ingestor
	Store    ChunkWriter
}

// Upload stores the chunks of path under source and returns how many were
// written. Re-uploading the same source overwrites chunks with matching ids.
func (u *Uploader) Upload(ctx context.Context, path, source, docType string) (int, error) {
	if docType == "" {
		docType = models.DefaultDocType
	}

	chunks, err := u.Ingestor.Ingest(ctx, path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		log.Warn().Str("source", source).Msg("no text extracted from document")
		return 0, nil
	}

	ids := make([]string, len(chunks))
	metas := make([]models.ChunkMeta, len(chunks))
	for i := range chunks {
		ids[i] = ChunkID(source, i)
		metas[i] = models.ChunkMeta{
			Source:        source,
			SequenceIndex: i,
			TotalChunks:   len(chunks),
			DocType:       docType,
		}
	}

	if err := u.Store.AddChunks(ctx, ids, chunks, metas); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", source, err)
	}

	metrics.ChunksIngestedTotal.WithLabelValues(docType).Add(float64(len(chunks)))
	log.Info().
		Str("source", source).
		Str("doc_type", docType).
		Int("chunks", len(chunks)).
		Msg("document ingested")
	return len(chunks), nil
}
