package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/imgsearch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/dump"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/embedding/inference"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/exif/goexif"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/files/glob"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/search/memory"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/search/opensearch"
	memstore "github.com/custodia-labs/imgsearch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/imgsearch/internal/adapters/driven/viewer"
	"github.com/custodia-labs/imgsearch/internal/adapters/driving/cli"
	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
	"github.com/custodia-labs/imgsearch/internal/core/services"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// dotEnvFile is read from the working directory when present.
const dotEnvFile = ".env"

func newSettingsService(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	svc := services.NewSettingsService(store)
	if err := svc.LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	return svc, nil
}

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

func newServices(_ context.Context, settings domain.Settings, opts cli.ServiceOptions) (svcs *cli.Services, err error) {
	var cleanup closers
	defer func() {
		if err != nil {
			_ = cleanup.Close()
		}
	}()

	index, runs, err := newStorage(settings, &cleanup)
	if err != nil {
		return nil, err
	}

	loader := inference.NewLoader(inference.ConfigFromSettings(settings.Model))
	enumerator := glob.NewEnumerator()

	ingest := services.NewIngestService(settings, loader, enumerator, goexif.NewReader(), index)
	ingest.SetRunStore(runs)
	ingest.SetBulkSource(dump.Source{})
	cleanup = append(cleanup, ingest.Close)

	if opts.DumpPath != "" {
		sink, err := dump.Create(opts.DumpPath)
		if err != nil {
			return nil, err
		}
		ingest.SetBulkSink(sink)
		cleanup = append(cleanup, func() error {
			err := sink.Close()
			logger.Info("Wrote %d bulk payloads to %s", sink.Payloads(), sink.Path())
			return err
		})
	}

	selector := glob.NewRandomSelector(enumerator, settings.Query.Dir, settings.Ingest.Pattern, 0)
	query := services.NewQueryService(settings, loader, index, selector)
	cleanup = append(cleanup, query.Close)

	watch := services.NewWatchService(settings, glob.NewWatcher(), enumerator, ingest)
	watch.SetDebounce(opts.Debounce)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	view, err := viewer.New(settings.Query.Viewer, out)
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Ingest: ingest,
		Query:  query,
		Runs:   services.NewRunService(runs),
		Watch:  watch,
		Viewer: view,
		Close:  cleanup.Close,
	}, nil
}

// newStorage opens the search index for the configured backend and the run
// store beside it. Run history is kept in the local database for every
// backend except memory.
func newStorage(settings domain.Settings, cleanup *closers) (driven.SearchIndex, driven.RunStore, error) {
	logger.Debug("Search backend: %s", settings.Search.Backend)

	switch settings.Search.Backend {
	case domain.BackendMemory:
		index := memory.NewIndex()
		*cleanup = append(*cleanup, index.Close)
		return index, memstore.NewRunStore(), nil

	case domain.BackendSQLite:
		store, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		*cleanup = append(*cleanup, store.Close)
		return store.SearchIndex(), store.RunStore(), nil

	case domain.BackendOpenSearch:
		store, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		*cleanup = append(*cleanup, store.Close)

		index, err := opensearch.NewIndex(settings.Search)
		if err != nil {
			return nil, nil, err
		}
		*cleanup = append(*cleanup, index.Close)
		return index, store.RunStore(), nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidInput, settings.Search.Backend)
	}
}
