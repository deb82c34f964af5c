package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the ingestion pipeline:
// load model, enumerate files, extract documents, create index, bulk load, flush.
type IngestService struct {
	settings   domain.Settings
	loader     driven.ModelLoader
	enumerator driven.FileEnumerator
	metadata   driven.MetadataReader
	index      driven.SearchIndex
	runs       driven.RunStore
	sink       driven.BulkSink
	source     driven.BulkSource

	// model is loaded on first use and reused by later IndexFiles calls.
	mu        sync.Mutex
	model     driven.ImageEmbedder
	modelLoad time.Duration

	newRunID func() string
}

// NewIngestService creates a new ingest service.
// The metadata reader is optional (can be nil).
func NewIngestService(
	settings domain.Settings,
	loader driven.ModelLoader,
	enumerator driven.FileEnumerator,
	metadata driven.MetadataReader,
	index driven.SearchIndex,
) *IngestService {
	return &IngestService{
		settings:   settings,
		loader:     loader,
		enumerator: enumerator,
		metadata:   metadata,
		index:      index,
		newRunID:   uuid.NewString,
	}
}

// SetRunStore enables run history.
func (s *IngestService) SetRunStore(store driven.RunStore) {
	s.runs = store
}

// SetBulkSink sets a sink receiving a copy of every bulk payload.
func (s *IngestService) SetBulkSink(sink driven.BulkSink) {
	s.sink = sink
}

// SetBulkSource enables Replay of dump files.
func (s *IngestService) SetBulkSource(source driven.BulkSource) {
	s.source = source
}

// Ingest runs the full pipeline over the configured image root.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestService) Ingest(ctx context.Context, opts driving.IngestOptions) (*domain.IngestReport, error) {
	report := s.newReport()
	start := time.Now()
	defer func() {
		report.TotalDuration = time.Since(start)
		s.record(ctx, report)
	}()

	// 1. Load model
	logger.Section("Model")
	embedder, err := s.embedder(ctx)
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateModelLoaded, Err: err})
	}
	report.ModelLoadDuration = s.modelLoad
	if err := pingModel(ctx, embedder); err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateModelLoaded, Err: err})
	}
	report.Advance(domain.StateModelLoaded)

	if !opts.DryRun {
		if err := pingIndex(ctx, s.index); err != nil {
			return report, s.fail(report, &domain.StageError{Stage: domain.StateIndexCreated, Err: err})
		}
	}

	// 2. Enumerate files
	logger.Section("Files")
	cfg := s.settings.Ingest
	paths, err := s.enumerator.Enumerate(ctx, cfg.ImagesRoot, cfg.Pattern, cfg.MaxImages)
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateFilesEnumerated, Err: err})
	}
	report.ImagesFound = len(paths)
	logger.Info("Found %d images under %s", len(paths), cfg.ImagesRoot)
	report.Advance(domain.StateFilesEnumerated)

	// 3. Extract documents
	logger.Section("Embeddings")
	embedStart := time.Now()
	docs, err := s.extractAll(ctx, embedder, paths, opts.Progress, report)
	report.EmbedDuration = time.Since(embedStart)
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateDocsBuilt, Err: err})
	}
	report.Advance(domain.StateDocsBuilt)

	if opts.DryRun {
		logger.Info("Dry run: skipping index, writing %d documents to sink", len(docs))
		return report, s.dumpOnly(docs)
	}

	// 4. Create index
	logger.Section("Index")
	if err := s.createIndex(ctx, embedder.Dimensions()); err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateIndexCreated, Err: err})
	}
	report.Advance(domain.StateIndexCreated)

	// 5. Bulk load and flush
	return report, s.loadAndFlush(ctx, docs, report)
}

// IndexFiles extracts paths and loads them into the index,
// creating the index first when it does not exist yet.
func (s *IngestService) IndexFiles(ctx context.Context, paths []string) (*domain.IngestReport, error) {
	report := s.newReport()
	start := time.Now()
	defer func() {
		report.TotalDuration = time.Since(start)
		s.record(ctx, report)
	}()

	embedder, err := s.embedder(ctx)
	if err == nil {
		err = pingModel(ctx, embedder)
	}
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateModelLoaded, Err: err})
	}
	report.Advance(domain.StateModelLoaded)

	report.ImagesFound = len(paths)
	report.Advance(domain.StateFilesEnumerated)

	embedStart := time.Now()
	docs, err := s.extractAll(ctx, embedder, paths, nil, report)
	report.EmbedDuration = time.Since(embedStart)
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateDocsBuilt, Err: err})
	}
	report.Advance(domain.StateDocsBuilt)

	if err := s.ensureIndex(ctx, embedder.Dimensions()); err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateIndexCreated, Err: err})
	}
	report.Advance(domain.StateIndexCreated)

	return report, s.loadAndFlush(ctx, docs, report)
}

func (s *IngestService) newReport() *domain.IngestReport {
	return &domain.IngestReport{
		RunID:     s.newRunID(),
		IndexName: s.settings.Search.IndexName,
		Model:     s.settings.Model.Name,
		State:     domain.StateIdle,
		StartedAt: time.Now().UTC(),
	}
}

// embedder returns the loaded model, loading it on first use.
func (s *IngestService) embedder(ctx context.Context) (driven.ImageEmbedder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model != nil {
		return s.model, nil
	}
	embedder, took, err := LoadModel(ctx, s.loader, s.settings.Model.Name)
	if err != nil {
		return nil, err
	}
	s.model = embedder
	s.modelLoad = took
	return embedder, nil
}

// Close releases the loaded model.
func (s *IngestService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil
	}
	err := s.model.Close()
	s.model = nil
	return err
}

// extractAll processes paths with up to Workers images in flight.
// Per-image failures are recorded in the report; only cancellation aborts.
func (s *IngestService) extractAll(
	ctx context.Context,
	embedder driven.ImageEmbedder,
	paths []string,
	progress func(done, total int),
	report *domain.IngestReport,
) ([]domain.ImageDocument, error) {
	extractor := NewExtractor(embedder, s.metadata, s.settings.Ingest.ImagesRoot)
	results := make([]*Extraction, len(paths))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.settings.Ingest.Workers, 1))

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := extractor.Extract(gctx, path)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("Skipping %s: %v", path, err)
				report.Failures = append(report.Failures, domain.ImageFailure{Path: path, Error: err.Error()})
			} else {
				results[i] = res
				if res.ExifErr != nil {
					report.ExifErrors = append(report.ExifErrors, domain.ImageFailure{Path: path, Error: res.ExifErr.Error()})
				}
			}

			done++
			if progress != nil {
				progress(done, len(paths))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	docs := make([]domain.ImageDocument, 0, len(paths))
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Document.Exif.IsEmpty() {
			report.ExifMissing++
		}
		docs = append(docs, res.Document)
	}
	report.ImagesProcessed = len(docs)

	logger.Info("Built %d documents (%d failed, %d without EXIF)",
		len(docs), len(report.Failures), report.ExifMissing)
	return docs, nil
}

// createIndex creates the target index from the configured schema.
// An existing index is accepted only when ReuseIndex is set.
func (s *IngestService) createIndex(ctx context.Context, dims int) error {
	name := s.settings.Search.IndexName

	schema, err := LoadIndexSchema(s.settings.Search.SchemaPath, dims)
	if err != nil {
		return err
	}

	logger.Info("Creating index %s", name)
	err = s.index.CreateIndex(ctx, name, schema)
	if errors.Is(err, domain.ErrIndexExists) && s.settings.Search.ReuseIndex {
		logger.Info("Index %s exists, reusing it", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// ensureIndex creates the index unless it already exists.
func (s *IngestService) ensureIndex(ctx context.Context, dims int) error {
	err := s.createIndex(ctx, dims)
	if errors.Is(err, domain.ErrIndexExists) {
		logger.Debug("Index %s already exists", s.settings.Search.IndexName)
		return nil
	}
	return err
}

// loadAndFlush sends docs in chunks, then flushes the index.
// Without ContinueOnError the first failed chunk stops the run before the flush.
func (s *IngestService) loadAndFlush(ctx context.Context, docs []domain.ImageDocument, report *domain.IngestReport) error {
	report.Advance(domain.StateBulkLoading)

	chunkErr := s.loadChunks(ctx, docs, report)
	if chunkErr != nil && !s.settings.Ingest.ContinueOnError {
		return s.fail(report, chunkErr)
	}

	name := s.settings.Search.IndexName
	logger.Debug("Flushing index %s", name)
	if err := s.index.Flush(ctx, name); err != nil {
		return s.fail(report, &domain.StageError{Stage: domain.StateFlushed, Err: fmt.Errorf("flush %s: %w", name, err)})
	}
	report.Advance(domain.StateFlushed)

	if chunkErr != nil {
		return s.fail(report, chunkErr)
	}

	report.Advance(domain.StateDone)
	logger.Info("Ingest complete: %d documents loaded in %d chunks", report.DocumentsLoaded(), len(report.Chunks))
	return nil
}

// loadChunks issues one bulk request per chunk and records each outcome.
func (s *IngestService) loadChunks(ctx context.Context, docs []domain.ImageDocument, report *domain.IngestReport) error {
	chunks := ChunkDocuments(docs, s.settings.Ingest.ChunkSize)
	name := s.settings.Search.IndexName

	var errs []error
	for i, chunk := range chunks {
		result := domain.ChunkResult{Number: i + 1, Documents: len(chunk)}

		err := s.loadChunk(ctx, name, chunk, &result)
		report.Chunks = append(report.Chunks, result)
		if err == nil {
			continue
		}

		stageErr := &domain.StageError{Stage: domain.StateBulkLoading, Chunk: i + 1, Chunks: len(chunks), Err: err}
		logger.Warn("%v", stageErr)
		if !s.settings.Ingest.ContinueOnError || ctx.Err() != nil {
			return stageErr
		}
		errs = append(errs, stageErr)
	}

	return errors.Join(errs...)
}

func (s *IngestService) loadChunk(ctx context.Context, name string, chunk []domain.ImageDocument, result *domain.ChunkResult) error {
	payload, err := BuildBulkPayload(name, chunk)
	if err != nil {
		result.Error = err.Error()
		return err
	}

	if s.sink != nil {
		if err := s.sink.Write(payload); err != nil {
			logger.Warn("Bulk dump failed for chunk %d: %v", result.Number, err)
		}
	}

	start := time.Now()
	resp, err := s.index.Bulk(ctx, payload)
	result.Took = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return err
	}

	result.ItemErrors = resp.FailedItems
	result.EngineTook = resp.Took
	logger.Response(fmt.Sprintf("bulk chunk %d", result.Number), resp.Raw)
	if resp.FailedItems > 0 {
		logger.Warn("Bulk chunk %d: %d of %d documents rejected", result.Number, resp.FailedItems, len(chunk))
	}
	return nil
}

// dumpOnly writes payloads to the sink without touching the index.
func (s *IngestService) dumpOnly(docs []domain.ImageDocument) error {
	if s.sink == nil {
		return nil
	}
	for _, chunk := range ChunkDocuments(docs, s.settings.Ingest.ChunkSize) {
		payload, err := BuildBulkPayload(s.settings.Search.IndexName, chunk)
		if err != nil {
			return err
		}
		if err := s.sink.Write(payload); err != nil {
			return fmt.Errorf("write bulk dump: %w", err)
		}
	}
	return nil
}

func (s *IngestService) fail(report *domain.IngestReport, err error) error {
	report.Advance(domain.StateFailed)
	report.Error = err.Error()
	return err
}

// record saves the report when run history is enabled. Failures are logged only.
func (s *IngestService) record(ctx context.Context, report *domain.IngestReport) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(context.WithoutCancel(ctx), *report); err != nil {
		logger.Warn("Failed to record run %s: %v", report.RunID, err)
	}
}
