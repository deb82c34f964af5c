// Package memory provides in-memory implementations of the storage ports.
// Nothing survives the process. The memory search backend pairs with it.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu      sync.RWMutex
	reports map[string]domain.IngestReport
	order   []string
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		reports: make(map[string]domain.IngestReport),
	}
}

// Save stores or replaces a report.
func (s *RunStore) Save(_ context.Context, report domain.IngestReport) error {
	if report.RunID == "" {
		return fmt.Errorf("%w: report without run id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.RunID]; !ok {
		s.order = append(s.order, report.RunID)
	}
	s.reports[report.RunID] = report
	return nil
}

// Get retrieves a report by run ID.
func (s *RunStore) Get(_ context.Context, runID string) (*domain.IngestReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &report, nil
}

// List returns up to limit reports, newest first. A non-positive limit returns all.
func (s *RunStore) List(_ context.Context, limit int) ([]domain.IngestReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.IngestReport, 0, len(s.order))
	for _, id := range s.order {
		reports = append(reports, s.reports[id])
	}
	// Stable sort keeps insertion order for equal start times; reverse for newest first.
	slices.SortStableFunc(reports, func(a, b domain.IngestReport) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	slices.Reverse(reports)

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
