package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// LoadModel loads the named model and measures how long it took.
// A nil loader or an empty name is a configuration error.
func LoadModel(ctx context.Context, loader driven.ModelLoader, name string) (driven.ImageEmbedder, time.Duration, error) {
	if loader == nil {
		return nil, 0, fmt.Errorf("load model: %w", domain.ErrModelUnavailable)
	}
	if name == "" {
		return nil, 0, fmt.Errorf("load model: %w: empty model name", domain.ErrInvalidInput)
	}

	logger.Debug("Loading model %q", name)
	start := time.Now()
	embedder, err := loader.Load(ctx, name)
	took := time.Since(start)
	if err != nil {
		return nil, took, fmt.Errorf("load model %s: %w", name, err)
	}
	if embedder == nil {
		return nil, took, fmt.Errorf("load model %s: %w", name, errors.New("loader returned no model"))
	}

	logger.Info("Loaded model %s (%d dimensions) in %s", embedder.ModelName(), embedder.Dimensions(), took)
	return embedder, took, nil
}
