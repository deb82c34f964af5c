package mcp

import (
	"context"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	opts   []driving.QueryOptions
	result *domain.QueryResult
	err    error
}

func (m *mockQueryService) Query(_ context.Context, opts driving.QueryOptions) (*domain.QueryResult, error) {
	m.opts = append(m.opts, opts)
	return m.result, m.err
}

func (m *mockQueryService) ResolvePath(hit domain.Hit) string {
	return "/images/" + hit.Document.RelativePath
}

// mockRunHistory is a mock implementation of driving.RunHistory.
type mockRunHistory struct {
	reports []domain.IngestReport
	limit   int
	err     error
}

func (m *mockRunHistory) List(_ context.Context, limit int) ([]domain.IngestReport, error) {
	m.limit = limit
	return m.reports, m.err
}

func (m *mockRunHistory) Get(_ context.Context, runID string) (*domain.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.reports {
		if m.reports[i].RunID == runID {
			return &m.reports[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
