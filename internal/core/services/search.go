package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService embeds a query image and searches for its nearest neighbours.
type QueryService struct {
	settings domain.Settings
	loader   driven.ModelLoader
	index    driven.SearchIndex
	selector driven.FileSelector

	mu    sync.Mutex
	model driven.ImageEmbedder
}

// NewQueryService creates a new query service.
// The selector is optional (can be nil); without it every query needs an explicit image.
func NewQueryService(
	settings domain.Settings,
	loader driven.ModelLoader,
	index driven.SearchIndex,
	selector driven.FileSelector,
) *QueryService {
	return &QueryService{
		settings: settings,
		loader:   loader,
		index:    index,
		selector: selector,
	}
}

// Query runs the query pipeline: select image, load model, embed, search.
func (s *QueryService) Query(ctx context.Context, opts driving.QueryOptions) (*domain.QueryResult, error) {
	path, err := s.queryImage(ctx, opts.ImagePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Query image: %s", path)

	embedder, took, err := s.embedder(ctx)
	if err != nil {
		return nil, err
	}
	if err := pingModel(ctx, embedder); err != nil {
		return nil, err
	}
	if err := pingIndex(ctx, s.index); err != nil {
		return nil, err
	}

	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}

	vector, err := embedder.EmbedImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}

	k := opts.K
	if k <= 0 {
		k = s.settings.Query.K
	}
	query := domain.NewKNNQuery(vector, k)

	if logger.IsVerbose() {
		if body, err := query.Body(); err == nil {
			logger.Debug("Query body: %s", body)
		}
	}

	hits, err := s.index.KNNSearch(ctx, s.settings.Search.IndexName, query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.settings.Search.IndexName, err)
	}
	logger.Info("Found %d hits", len(hits))

	return &domain.QueryResult{
		ImagePath:         path,
		Hits:              hits,
		ModelLoadDuration: took,
	}, nil
}

// ResolvePath maps a hit to a local file.
// Hits carrying a relative path resolve against the image root;
// others fall back to the image name inside the query directory.
func (s *QueryService) ResolvePath(hit domain.Hit) string {
	if rel := hit.Document.RelativePath; rel != "" && s.settings.Ingest.ImagesRoot != "" {
		return filepath.Join(s.settings.Ingest.ImagesRoot, filepath.FromSlash(rel))
	}
	return filepath.Join(s.settings.Query.Dir, hit.Document.ImageName)
}

// Close releases the loaded model.
func (s *QueryService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil
	}
	err := s.model.Close()
	s.model = nil
	return err
}

func (s *QueryService) queryImage(ctx context.Context, path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if s.selector == nil {
		return "", fmt.Errorf("query image: %w: no image given and no selector configured", domain.ErrInvalidInput)
	}
	path, err := s.selector.Select(ctx)
	if err != nil {
		return "", fmt.Errorf("select query image: %w", err)
	}
	return path, nil
}

// embedder loads the model on first use. The reported duration is the
// load time of the first call and zero afterwards.
func (s *QueryService) embedder(ctx context.Context) (driven.ImageEmbedder, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model != nil {
		return s.model, 0, nil
	}
	embedder, took, err := LoadModel(ctx, s.loader, s.settings.Model.Name)
	if err != nil {
		return nil, took, err
	}
	s.model = embedder
	return embedder, took, nil
}
