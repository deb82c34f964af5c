package driving

import (
	"context"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// QueryOptions configures a query.
type QueryOptions struct {
	// ImagePath is the query image. Empty lets the service's selector choose.
	ImagePath string

	// K is the number of neighbours. 0 uses the configured default.
	K int
}

// QueryService finds images similar to a query image.
type QueryService interface {
	// Query embeds the query image and returns its nearest neighbours.
	Query(ctx context.Context, opts QueryOptions) (*domain.QueryResult, error)

	// ResolvePath maps a hit to a local file path for display.
	ResolvePath(hit domain.Hit) string
}
