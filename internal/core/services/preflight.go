package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// pingModel fails with domain.ErrModelUnavailable when the embedding server does not answer.
func pingModel(ctx context.Context, embedder driven.ImageEmbedder) error {
	if err := embedder.Ping(ctx); err != nil {
		return unavailable(domain.ErrModelUnavailable, "ping model", err)
	}
	return nil
}

// pingIndex fails with domain.ErrBackendUnavailable when the search engine does not answer.
func pingIndex(ctx context.Context, index driven.SearchIndex) error {
	if err := index.Ping(ctx); err != nil {
		return unavailable(domain.ErrBackendUnavailable, "ping search backend", err)
	}
	return nil
}

func unavailable(sentinel error, op string, err error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
