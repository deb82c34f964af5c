// Package memory provides a process-local search index with exact cosine k-NN.
// Its contents are lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/custodia-labs/imgsearch/internal/adapters/driven/search/local"
	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

type storedDoc struct {
	id  string
	doc domain.ImageDocument
}

type index struct {
	schema domain.IndexSchema
	dims   int
	docs   []storedDoc
	byID   map[string]int
}

// Index is an in-memory implementation of driven.SearchIndex.
type Index struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

// NewIndex creates an empty in-memory index set.
func NewIndex() *Index {
	return &Index{indexes: make(map[string]*index)}
}

// CreateIndex registers a new index.
func (m *Index) CreateIndex(_ context.Context, name string, schema domain.IndexSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.indexes[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrIndexExists, name)
	}
	m.indexes[name] = &index{
		schema: schema,
		dims:   schema.VectorDimension(),
		byID:   make(map[string]int),
	}
	return nil
}

// Bulk stores every document of the payload. Documents for unknown indexes
// or with the wrong dimension are rejected individually.
func (m *Index) Bulk(_ context.Context, payload []byte) (*driven.BulkResponse, error) {
	actions, err := local.ParseBulk(payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := local.NewBulkRecorder()
	for _, a := range actions {
		idx, ok := m.indexes[a.Index]
		if !ok {
			rec.Failed(a, http.StatusNotFound, "index_not_found_exception", "no such index ["+a.Index+"]")
			continue
		}
		if idx.dims > 0 && a.Doc.Dimensions() != idx.dims {
			rec.Failed(a, http.StatusBadRequest, "mapper_parsing_exception",
				fmt.Sprintf("vector dimension %d does not match mapping %d", a.Doc.Dimensions(), idx.dims))
			continue
		}
		if pos, exists := idx.byID[a.ID]; exists {
			idx.docs[pos].doc = a.Doc
		} else {
			idx.byID[a.ID] = len(idx.docs)
			idx.docs = append(idx.docs, storedDoc{id: a.ID, doc: a.Doc})
		}
		rec.Created(a)
	}
	return rec.Response(), nil
}

// Flush checks the index exists. Writes are visible immediately.
func (m *Index) Flush(_ context.Context, name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.indexes[name]; !ok {
		return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	return nil
}

// KNNSearch ranks every stored document by cosine similarity.
func (m *Index) KNNSearch(_ context.Context, name string, query domain.KNNQuery) ([]domain.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	if idx.dims > 0 && len(query.Vector) != idx.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %d", domain.ErrDimensionMismatch, len(query.Vector), idx.dims)
	}

	ranker := local.NewRanker(query.Vector, query.K)
	for _, d := range idx.docs {
		ranker.Offer(d.id, d.doc)
	}
	return ranker.Hits(), nil
}

// Ping always succeeds.
func (m *Index) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (m *Index) Close() error {
	return nil
}
