package driving

import (
	"context"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// IngestOptions tunes a single ingestion run.
type IngestOptions struct {
	// Progress is called after each image with the processed and total counts.
	Progress func(done, total int)

	// DryRun builds documents and payloads but skips the search index.
	DryRun bool
}

// IngestService runs the ingestion pipeline.
type IngestService interface {
	// Ingest runs the full pipeline over the configured image root.
	// The report is returned even on failure and records the failing stage.
	Ingest(ctx context.Context, opts IngestOptions) (*domain.IngestReport, error)

	// IndexFiles extracts and loads the given files into an existing index.
	IndexFiles(ctx context.Context, paths []string) (*domain.IngestReport, error)

	// Replay loads the documents of a bulk dump file into the index.
	Replay(ctx context.Context, path string) (*domain.IngestReport, error)
}

// RunHistory exposes recorded ingestion runs.
type RunHistory interface {
	// List returns up to limit recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.IngestReport, error)

	// Get returns a run by ID.
	Get(ctx context.Context, runID string) (*domain.IngestReport, error)
}

// WatchService indexes images as they appear.
type WatchService interface {
	// Watch blocks until ctx is cancelled, calling onBatch after each loaded batch.
	Watch(ctx context.Context, onBatch func(*domain.IngestReport)) error
}
