package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// DefaultDebounce is the quiet period before a batch of new files is indexed.
const DefaultDebounce = 2 * time.Second

// WatchService indexes images as they appear under the image root.
type WatchService struct {
	settings   domain.Settings
	watcher    driven.FileWatcher
	enumerator driven.FileEnumerator
	ingest     driving.IngestService
	debounce   time.Duration
}

// NewWatchService creates a new watch service.
func NewWatchService(
	settings domain.Settings,
	watcher driven.FileWatcher,
	enumerator driven.FileEnumerator,
	ingest driving.IngestService,
) *WatchService {
	return &WatchService{
		settings:   settings,
		watcher:    watcher,
		enumerator: enumerator,
		ingest:     ingest,
		debounce:   DefaultDebounce,
	}
}

// SetDebounce changes the quiet period between the last event and indexing.
func (s *WatchService) SetDebounce(d time.Duration) {
	if d > 0 {
		s.debounce = d
	}
}

// Watch blocks until ctx is cancelled or the watcher stops.
// Files matching the ingest pattern are collected and indexed in batches.
func (s *WatchService) Watch(ctx context.Context, onBatch func(*domain.IngestReport)) error {
	root := s.settings.Ingest.ImagesRoot
	events, errs, err := s.watcher.Watch(ctx, root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	logger.Info("Watching %s for new images", root)

	var (
		pending []string
		seen    = make(map[string]struct{})
		flushC  <-chan time.Time
	)
	// indexed holds every path loaded during this session. Bulk actions carry
	// no document ID, so indexing a path twice would duplicate it.
	indexed := make(map[string]struct{})

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		clear(seen)

		logger.Info("Indexing %d new images", len(batch))
		report, err := s.ingest.IndexFiles(ctx, batch)
		if err != nil {
			logger.Warn("Indexing batch failed: %v", err)
		} else {
			var failed map[string]bool
			if report != nil {
				failed = report.FailedPaths()
			}
			for _, path := range batch {
				if !failed[path] {
					indexed[path] = struct{}{}
				}
			}
		}
		if onBatch != nil && report != nil {
			onBatch(report)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case path, ok := <-events:
			if !ok {
				flush()
				return nil
			}
			rel := domain.RelativePath(path, root)
			if !s.enumerator.Match(s.settings.Ingest.Pattern, rel) {
				logger.Debug("Ignoring %s", rel)
				continue
			}
			if _, done := indexed[path]; done {
				logger.Debug("Already indexed %s", rel)
				continue
			}
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			pending = append(pending, path)
			flushC = time.After(s.debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("Watcher error: %v", err)

		case <-flushC:
			flushC = nil
			flush()
		}
	}
}
