package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

// Ensure RunService implements the interface.
var _ driving.RunHistory = (*RunService)(nil)

// DefaultRunLimit is the number of runs listed when no limit is given.
const DefaultRunLimit = 20

// RunService exposes the history of ingestion runs.
type RunService struct {
	store driven.RunStore
}

// NewRunService creates a new run history service.
func NewRunService(store driven.RunStore) *RunService {
	return &RunService{store: store}
}

// List returns up to limit recent runs, newest first.
func (s *RunService) List(ctx context.Context, limit int) ([]domain.IngestReport, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns a run by ID.
func (s *RunService) Get(ctx context.Context, runID string) (*domain.IngestReport, error) {
	if runID == "" {
		return nil, fmt.Errorf("get run: %w: empty run id", domain.ErrInvalidInput)
	}
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}
