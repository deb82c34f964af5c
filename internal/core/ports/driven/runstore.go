package driven

import (
	"context"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// RunStore persists ingestion run reports.
type RunStore interface {
	// Save stores or replaces a report keyed by RunID.
	Save(ctx context.Context, report domain.IngestReport) error

	// Get retrieves a report. Missing runs fail with domain.ErrNotFound.
	Get(ctx context.Context, runID string) (*domain.IngestReport, error)

	// List returns the most recent reports, newest first.
	List(ctx context.Context, limit int) ([]domain.IngestReport, error)
}
