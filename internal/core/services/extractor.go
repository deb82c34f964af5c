package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Extraction is the outcome of processing one image.
type Extraction struct {
	// Document is the built image document.
	Document domain.ImageDocument

	// ExifErr explains which EXIF fields are absent, if any.
	ExifErr error
}

// Extractor turns image files into documents.
type Extractor struct {
	embedder driven.ImageEmbedder
	metadata driven.MetadataReader
	root     string
}

// NewExtractor creates an extractor. Relative paths are computed against root.
// metadata may be nil, in which case every document has an empty exif object.
func NewExtractor(embedder driven.ImageEmbedder, metadata driven.MetadataReader, root string) *Extractor {
	return &Extractor{
		embedder: embedder,
		metadata: metadata,
		root:     root,
	}
}

// Extract decodes and embeds the image, derives its names and reads EXIF.
// Decode and embedding failures abort this image only; EXIF failures
// leave the affected fields absent.
func (e *Extractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}

	embedding, err := e.embedder.EmbedImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", path, err)
	}
	if dims := e.embedder.Dimensions(); dims > 0 && len(embedding) != dims {
		return nil, fmt.Errorf("embed %s: %w: got %d, want %d", path, domain.ErrDimensionMismatch, len(embedding), dims)
	}

	out := &Extraction{
		Document: domain.ImageDocument{
			ImageID:      domain.CreateImageID(path),
			ImageName:    domain.ImageName(path),
			Embedding:    embedding,
			RelativePath: domain.RelativePath(path, e.root),
		},
	}

	if e.metadata != nil {
		exif, exifErr := e.metadata.ReadExif(path)
		out.Document.Exif = exif
		if exifErr != nil {
			logger.Warn("EXIF %s: %v", path, exifErr)
			out.ExifErr = exifErr
		}
	}

	return out, nil
}
