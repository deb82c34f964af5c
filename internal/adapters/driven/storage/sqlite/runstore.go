package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// Save stores or replaces a report.
func (s *runStore) Save(ctx context.Context, report domain.IngestReport) error {
	if report.RunID == "" {
		return fmt.Errorf("%w: report without run id", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, index_name, model, state, started_at, report)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			index_name = excluded.index_name,
			model = excluded.model,
			state = excluded.state,
			started_at = excluded.started_at,
			report = excluded.report
	`, report.RunID, report.IndexName, report.Model, report.State.String(),
		report.StartedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Get retrieves a report by run ID.
func (s *runStore) Get(ctx context.Context, runID string) (*domain.IngestReport, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT report FROM runs WHERE run_id = ?", runID)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return decodeReport(data)
}

// List returns up to limit reports, newest first. A non-positive limit returns all.
func (s *runStore) List(ctx context.Context, limit int) ([]domain.IngestReport, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT report FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var reports []domain.IngestReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return reports, nil
}

func decodeReport(data string) (*domain.IngestReport, error) {
	var report domain.IngestReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &report, nil
}
