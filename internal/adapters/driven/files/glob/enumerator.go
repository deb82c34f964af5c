package glob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure Enumerator implements the interface.
var _ driven.FileEnumerator = (*Enumerator)(nil)

// Enumerator lists files under a root directory with recursive glob patterns
// such as "**/*.{jpg,jpeg}".
type Enumerator struct{}

// NewEnumerator creates a new enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{}
}

// Enumerate returns regular files under root matching pattern, sorted,
// truncated to limit when limit > 0. Returned paths are joined with root.
func (e *Enumerator) Enumerate(ctx context.Context, root, pattern string, limit int) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("image root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("image root %s is not a directory", root)
	}

	var matches []string
	err = doublestar.GlobWalk(os.DirFS(root), pattern, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || isHidden(p) {
			return nil
		}
		matches = append(matches, p)
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}

	sort.Strings(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return paths, nil
}

// Match reports whether rel, a slash-separated path relative to the root, matches pattern.
func (e *Enumerator) Match(pattern, rel string) bool {
	rel = filepath.ToSlash(rel)
	if isHidden(rel) {
		return false
	}
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

// isHidden reports whether any element of the slash path starts with a dot.
func isHidden(p string) bool {
	for _, part := range strings.Split(path.Clean(p), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
