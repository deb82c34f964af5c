package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKNNQuery_Body(t *testing.T) {
	q := NewKNNQuery([]float32{0.25, 1}, 5)

	body, err := q.Body()

	require.NoError(t, err)
	assert.JSONEq(t,
		`{"size":5,"query":{"knn":{"image_embedding":{"vector":[0.25,1],"k":5}}}}`,
		string(body))
}

func TestNewKNNQuery_DefaultK(t *testing.T) {
	q := NewKNNQuery([]float32{1}, 0)
	assert.Equal(t, DefaultK, q.K)
	assert.Equal(t, EmbeddingField, q.Field)
}
