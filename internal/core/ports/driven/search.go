package driven

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// SearchIndex is the search engine holding image documents.
// Implementations: OpenSearch (remote), SQLite and memory (local, exact).
type SearchIndex interface {
	// CreateIndex creates the named index from schema.
	// An existing index fails with domain.ErrIndexExists.
	CreateIndex(ctx context.Context, name string, schema domain.IndexSchema) error

	// Bulk sends one newline-delimited action/document payload.
	Bulk(ctx context.Context, payload []byte) (*BulkResponse, error)

	// Flush makes loaded documents visible to search.
	Flush(ctx context.Context, name string) error

	// KNNSearch returns the top-k hits for the query, best first.
	KNNSearch(ctx context.Context, name string, query domain.KNNQuery) ([]domain.Hit, error)

	// Ping reports whether the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// BulkResponse summarises the engine's reply to a bulk request.
type BulkResponse struct {
	// Took is the engine-reported processing time.
	Took time.Duration

	// Items is the number of actions the engine acknowledged.
	Items int

	// FailedItems is the number of actions rejected individually.
	FailedItems int

	// Raw is the undecoded response body.
	Raw []byte
}

// BulkSink receives a copy of every bulk payload.
type BulkSink interface {
	Write(payload []byte) error
	Close() error
}

// BulkSource reopens a payload file previously written by a BulkSink.
type BulkSource interface {
	Open(path string) (io.ReadCloser, error)
}
