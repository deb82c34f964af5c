package glob

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure selectors implement the interface.
var (
	_ driven.FileSelector = (*RandomSelector)(nil)
	_ driven.FileSelector = (*FixedSelector)(nil)
)

// RandomSelector picks a uniformly random matching file from a directory.
type RandomSelector struct {
	enumerator driven.FileEnumerator
	dir        string
	pattern    string
	rng        *rand.Rand
}

// NewRandomSelector creates a selector over dir. A seed of 0 picks a random seed.
func NewRandomSelector(enumerator driven.FileEnumerator, dir, pattern string, seed uint64) *RandomSelector {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomSelector{
		enumerator: enumerator,
		dir:        dir,
		pattern:    pattern,
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Select returns a random file. An empty directory fails with domain.ErrNoImages.
func (s *RandomSelector) Select(ctx context.Context) (string, error) {
	paths, err := s.enumerator.Enumerate(ctx, s.dir, s.pattern, 0)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w in %s", domain.ErrNoImages, s.dir)
	}
	return paths[s.rng.IntN(len(paths))], nil
}

// FixedSelector always returns the same file.
type FixedSelector struct {
	path string
}

// NewFixedSelector creates a selector for path.
func NewFixedSelector(path string) *FixedSelector {
	return &FixedSelector{path: path}
}

// Select returns the configured path after checking it is a readable file.
func (s *FixedSelector) Select(_ context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", fmt.Errorf("query image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: query image %s is a directory", domain.ErrInvalidInput, s.path)
	}
	return s.path, nil
}
