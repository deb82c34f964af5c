package domain

import (
	"encoding/json"
	"time"
)

// EmbeddingField is the document field holding the image vector.
const EmbeddingField = "image_embedding"

// DefaultK is the number of neighbours a query returns when unset.
const DefaultK = 5

// Hit is a single nearest-neighbour match.
type Hit struct {
	// ID is the engine-assigned document identifier.
	ID string

	// Score is the engine's similarity score (higher is closer).
	Score float64

	// Document is the stored source document.
	Document ImageDocument
}

// QueryResult is the outcome of a query pipeline run.
type QueryResult struct {
	// ImagePath is the query image.
	ImagePath string

	// Hits are ordered by descending score.
	Hits []Hit

	// ModelLoadDuration is the time spent loading the embedding model.
	ModelLoadDuration time.Duration
}

// KNNQuery asks for the K nearest neighbours of Vector in Field.
type KNNQuery struct {
	Field  string
	Vector []float32
	K      int
}

// NewKNNQuery returns a query against the embedding field.
func NewKNNQuery(vector []float32, k int) KNNQuery {
	if k <= 0 {
		k = DefaultK
	}
	return KNNQuery{Field: EmbeddingField, Vector: vector, K: k}
}

// Body encodes the query in the k-NN plugin's search DSL:
// {"size":k,"query":{"knn":{field:{"vector":[...],"k":k}}}}.
func (q KNNQuery) Body() ([]byte, error) {
	body := map[string]any{
		"size": q.K,
		"query": map[string]any{
			"knn": map[string]any{
				q.Field: map[string]any{
					"vector": q.Vector,
					"k":      q.K,
				},
			},
		},
	}
	return json.Marshal(body)
}
