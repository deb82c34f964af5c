package driven

import (
	"context"
	"image"
)

// ModelLoader resolves a model identifier to a ready embedder.
// Loading is a one-time, blocking, potentially slow operation.
type ModelLoader interface {
	// Load returns an embedder for the named model.
	// Unknown identifiers must fail with domain.ErrUnsupportedModel.
	Load(ctx context.Context, name string) (ImageEmbedder, error)
}

// ImageEmbedder maps a decoded image to a fixed-length vector.
//
// Implementations may include:
//   - HTTP inference servers hosting CLIP-style models
//   - Test doubles returning deterministic vectors
type ImageEmbedder interface {
	// EmbedImage generates a vector embedding for the given image.
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)

	// Dimensions returns the embedding vector size.
	// This is determined by the model and must match the index mapping.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
