package driven

import (
	"context"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// FileEnumerator lists candidate image files.
type FileEnumerator interface {
	// Enumerate returns files under root matching the recursive glob pattern,
	// truncated to limit entries. Paths include root.
	Enumerate(ctx context.Context, root, pattern string, limit int) ([]string, error)

	// Match reports whether path (relative to root) matches pattern.
	Match(pattern, rel string) bool
}

// FileSelector picks the image used for a query.
type FileSelector interface {
	Select(ctx context.Context) (string, error)
}

// FileWatcher streams files created under a root directory.
type FileWatcher interface {
	// Watch emits paths of newly created files until ctx is cancelled.
	// Both channels are closed when watching stops.
	Watch(ctx context.Context, root string) (<-chan string, <-chan error, error)
}

// MetadataReader extracts EXIF metadata from an image file.
type MetadataReader interface {
	// ReadExif returns whatever fields could be read. A non-nil error
	// describes the fields that could not; the returned Exif is still valid.
	ReadExif(path string) (domain.Exif, error)
}

// ImageViewer displays an image file.
type ImageViewer interface {
	Show(ctx context.Context, path string) error
}
