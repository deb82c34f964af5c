package services

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Replay loads the documents of a bulk dump into the configured index.
// Stored embeddings are reused, so no model is loaded; documents whose
// embedding length differs from the first document are skipped.
func (s *IngestService) Replay(ctx context.Context, path string) (*domain.IngestReport, error) {
	report := s.newReport()
	start := time.Now()
	defer func() {
		report.TotalDuration = time.Since(start)
		s.record(ctx, report)
	}()

	if s.source == nil {
		err := fmt.Errorf("replay %s: %w: no dump reader configured", path, domain.ErrInvalidInput)
		return report, s.fail(report, &domain.StageError{Stage: domain.StateModelLoaded, Err: err})
	}
	report.Advance(domain.StateModelLoaded)

	if err := pingIndex(ctx, s.index); err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateIndexCreated, Err: err})
	}

	logger.Section("Replay")
	docs, err := s.readDump(path)
	if err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateFilesEnumerated, Err: err})
	}
	report.ImagesFound = len(docs)
	logger.Info("Read %d documents from %s", len(docs), path)
	report.Advance(domain.StateFilesEnumerated)

	if len(docs) == 0 {
		err := fmt.Errorf("replay %s: %w", path, domain.ErrNoImages)
		return report, s.fail(report, &domain.StageError{Stage: domain.StateDocsBuilt, Err: err})
	}
	docs = sameDimensions(docs, report)
	report.ImagesProcessed = len(docs)
	report.Advance(domain.StateDocsBuilt)

	if err := s.ensureIndex(ctx, len(docs[0].Embedding)); err != nil {
		return report, s.fail(report, &domain.StageError{Stage: domain.StateIndexCreated, Err: err})
	}
	report.Advance(domain.StateIndexCreated)

	return report, s.loadAndFlush(ctx, docs, report)
}

func (s *IngestService) readDump(path string) ([]domain.ImageDocument, error) {
	r, err := s.source.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	docs, err := ReadBulkPayload(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return docs, nil
}

// sameDimensions keeps the documents whose embedding matches the first one's length.
func sameDimensions(docs []domain.ImageDocument, report *domain.IngestReport) []domain.ImageDocument {
	dims := len(docs[0].Embedding)
	kept := docs[:0]
	for _, doc := range docs {
		if len(doc.Embedding) != dims {
			err := fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(doc.Embedding), dims)
			logger.Warn("Skipping %s: %v", doc.ImageID, err)
			report.Failures = append(report.Failures, domain.ImageFailure{
				Path:  cmp.Or(doc.RelativePath, doc.ImageID),
				Error: err.Error(),
			})
			continue
		}
		kept = append(kept, doc)
	}
	return kept
}
