package services

import (
	"fmt"
	"os"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// LoadIndexSchema reads the schema resource at path, or builds the default
// schema for dims when path is empty. A declared dimension that disagrees
// with the model is rejected.
func LoadIndexSchema(path string, dims int) (domain.IndexSchema, error) {
	if path == "" {
		return domain.DefaultIndexSchema(dims), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IndexSchema{}, fmt.Errorf("read index schema: %w", err)
	}

	schema, err := domain.ParseIndexSchema(data)
	if err != nil {
		return domain.IndexSchema{}, fmt.Errorf("parse index schema %s: %w", path, err)
	}

	if declared := schema.VectorDimension(); declared > 0 && dims > 0 && declared != dims {
		return domain.IndexSchema{}, fmt.Errorf("index schema %s: %w: mapping declares %d, model produces %d",
			path, domain.ErrDimensionMismatch, declared, dims)
	}

	return schema, nil
}
