package domain

import (
	"path/filepath"
	"strings"
)

// CreateImageID returns the filename stem: directories and one extension removed.
func CreateImageID(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		// dotfile such as ".jpg": no stem to strip to
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// ImageName returns the base filename with its extension.
func ImageName(path string) string {
	return filepath.Base(path)
}

// RelativePath returns path relative to root using forward slashes.
// Paths outside root are returned cleaned and unchanged.
func RelativePath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}
