// Package indexer bulk-uploads a directory tree of legal documents.
package indexer

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/seanblong/lexora/internal/store"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// Uploader ingests one file into the vector store.
type Uploader interface {
	Upload(ctx context.Context, path, source, docType string) (int, error)
}

// Counter reports how many chunks match a filter.
type Counter interface {
	Count(ctx context.Context, f store.Filter) (int, error)
}

// Indexer walks Root and uploads every supported document.
type Indexer struct {
	Uploader Uploader
	// Store, when set, lets already indexed sources be skipped unless Force.
	Store     Counter
	Root      string
	DocType   string
	Supported func(path string) bool
	Force     bool
	Workers   int
	Walker    FileSystemWalker
}

// Stats summarizes a Run.
type Stats struct {
	Files   int64
	Skipped int64
	Failed  int64
	Chunks  int64
}

// New creates a new Indexer instance.
func New(u Uploader, st Counter, root, docType string, supported func(string) bool) *Indexer {
	return &Indexer{
		Uploader:  u,
		Store:     st,
		Root:      root,
		DocType:   docType,
		Supported: supported,
		Walker:    &DefaultFileSystemWalker{},
	}
}

// workItem represents a file to be processed
type workItem struct {
	path   string
	source string
}

func (ix *Indexer) processWorkItem(ctx context.Context, item workItem, stats *Stats) {
	logger := log.With().Str("source", item.source).Logger()

	if !ix.Force && ix.Store != nil {
		n, err := ix.Store.Count(ctx, store.Filter{Source: item.source})
		if err != nil {
			logger.Warn().Err(err).Msg("could not check existing chunks, re-indexing")
		} else if n > 0 {
			logger.Debug().Int("chunks", n).Msg("already indexed, skipping")
			atomic.AddInt64(&stats.Skipped, 1)
			return
		}
	}

	n, err := ix.Uploader.Upload(ctx, item.path, item.source, ix.DocType)
	if err != nil {
		logger.Error().Err(err).Str("path", item.path).Msg("upload failed")
		atomic.AddInt64(&stats.Failed, 1)
		return
	}
	atomic.AddInt64(&stats.Files, 1)
	atomic.AddInt64(&stats.Chunks, int64(n))
}

// Run walks Root with a bounded worker pool. Individual file failures are
// logged and counted; only a failed walk is returned as an error.
func (ix *Indexer) Run(ctx context.Context) (Stats, error) {
	numWorkers := ix.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > 8 {
		numWorkers = 8 // Cap at 8 to avoid overwhelming the embedding API
	}
	walker := ix.Walker
	if walker == nil {
		walker = &DefaultFileSystemWalker{}
	}

	log.Info().Int("workers", numWorkers).Str("root", ix.Root).Msg("starting concurrent indexing")

	var stats Stats
	workChan := make(chan workItem, numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Debug().Int("worker", workerID).Msg("worker started")
			for item := range workChan {
				ix.processWorkItem(ctx, item, &stats)
			}
			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	walkErr := walker.Walk(ix.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// de is nil when driven by a test walker
			if de != nil && de.IsDir() {
				if path != ix.Root && skipDir(path) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if ix.Supported != nil && !ix.Supported(path) {
				return nil
			}

			select {
			case workChan <- workItem{path: path, source: sourceName(ix.Root, path)}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	log.Info().
		Int64("files", stats.Files).
		Int64("skipped", stats.Skipped).
		Int64("failed", stats.Failed).
		Int64("chunks", stats.Chunks).
		Msg("indexing finished")
	return stats, walkErr
}

// skipDir reports whether a directory should not be descended into.
func skipDir(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(base, ".") {
		return true
	}
	switch base {
	case "node_modules", "__pycache__", "venv", "tmp":
		return true
	}
	return false
}

// sourceName is the slash-separated path of p relative to root.
func sourceName(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(r)
}
