package domain

import (
	"encoding/json"
	"fmt"
)

// IndexSchema is the body of a create-index request.
type IndexSchema struct {
	Settings map[string]any `json:"settings"`
	Mappings map[string]any `json:"mappings"`
}

// ParseIndexSchema decodes a schema resource and checks both sections are present.
func ParseIndexSchema(data []byte) (IndexSchema, error) {
	var schema IndexSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return IndexSchema{}, fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}
	if schema.Settings == nil {
		return IndexSchema{}, fmt.Errorf("%w: missing settings", ErrSchemaInvalid)
	}
	if schema.Mappings == nil {
		return IndexSchema{}, fmt.Errorf("%w: missing mappings", ErrSchemaInvalid)
	}
	return schema, nil
}

// DefaultIndexSchema returns a k-NN schema for vectors of the given dimension.
func DefaultIndexSchema(dims int) IndexSchema {
	return IndexSchema{
		Settings: map[string]any{
			"index": map[string]any{
				"knn":                true,
				"number_of_shards":   1,
				"number_of_replicas": 0,
			},
		},
		Mappings: map[string]any{
			"properties": map[string]any{
				"image_id":      map[string]any{"type": "keyword"},
				"image_name":    map[string]any{"type": "keyword"},
				"relative_path": map[string]any{"type": "keyword"},
				EmbeddingField: map[string]any{
					"type":      "knn_vector",
					"dimension": dims,
					"method": map[string]any{
						"name":       "hnsw",
						"engine":     "lucene",
						"space_type": "cosinesimil",
					},
				},
				"exif": map[string]any{
					"properties": map[string]any{
						"date":     map[string]any{"type": "date"},
						"location": map[string]any{"type": "geo_point"},
					},
				},
			},
		},
	}
}

// Body encodes the schema as a create-index request body.
func (s IndexSchema) Body() ([]byte, error) {
	return json.Marshal(s)
}

// VectorDimension returns the declared dimension of the embedding field, or 0 if undeclared.
func (s IndexSchema) VectorDimension() int {
	props, _ := s.Mappings["properties"].(map[string]any)
	field, _ := props[EmbeddingField].(map[string]any)
	switch v := field["dimension"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
