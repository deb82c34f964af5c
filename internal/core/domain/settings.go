package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const unknownDescription = "Unknown"

// Backend identifies the search engine holding the index.
type Backend string

// Available search backends.
const (
	// BackendOpenSearch is a remote OpenSearch cluster with the k-NN plugin.
	BackendOpenSearch Backend = "opensearch"

	// BackendSQLite is a local SQLite database with exact cosine search.
	BackendSQLite Backend = "sqlite"

	// BackendMemory is a process-local index, discarded on exit.
	BackendMemory Backend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b Backend) IsValid() bool {
	switch b {
	case BackendOpenSearch, BackendSQLite, BackendMemory:
		return true
	default:
		return false
	}
}

// IsRemote returns true if the backend is reached over the network.
func (b Backend) IsRemote() bool {
	return b == BackendOpenSearch
}

// String returns the string representation.
func (b Backend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b Backend) Description() string {
	switch b {
	case BackendOpenSearch:
		return "OpenSearch (remote k-NN)"
	case BackendSQLite:
		return "SQLite (local, exact)"
	case BackendMemory:
		return "Memory (ephemeral, exact)"
	default:
		return unknownDescription
	}
}

// ViewerMode selects how query results are displayed.
type ViewerMode string

// Available viewer modes.
const (
	// ViewerPrint prints result paths to the terminal.
	ViewerPrint ViewerMode = "print"

	// ViewerOpen opens images with the system viewer.
	ViewerOpen ViewerMode = "open"
)

// IsValid returns true if the viewer mode is recognised.
func (v ViewerMode) IsValid() bool {
	return v == ViewerPrint || v == ViewerOpen
}

// String returns the string representation.
func (v ViewerMode) String() string {
	return string(v)
}

// SearchSettings configures the search-index connection.
type SearchSettings struct {
	// Backend selects the index implementation.
	Backend Backend

	// Scheme is http or https.
	Scheme string

	// Host and Port locate the search engine.
	Host string
	Port int

	// Username and Password are basic-auth credentials.
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Compress gzips request bodies.
	Compress bool

	// IndexName is the target index.
	IndexName string

	// SchemaPath is a JSON file with settings and mappings.
	// Empty selects the built-in schema sized to the model dimension.
	SchemaPath string

	// ReuseIndex treats an existing index as created instead of failing.
	ReuseIndex bool
}

// Address returns the base URL of the search engine.
func (s SearchSettings) Address() string {
	return s.Scheme + "://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IngestSettings configures the ingestion pipeline.
type IngestSettings struct {
	// ChunkSize is the number of documents per bulk request.
	ChunkSize int

	// MaxImages caps the number of enumerated files.
	MaxImages int

	// ImagesRoot is the directory scanned for images.
	ImagesRoot string

	// Pattern is a recursive glob relative to ImagesRoot.
	Pattern string

	// Workers is the number of images processed concurrently. 1 is sequential.
	Workers int

	// ContinueOnError keeps loading remaining chunks after a chunk fails.
	ContinueOnError bool
}

// ModelSettings configures the embedding model server.
type ModelSettings struct {
	// Name is the model identifier.
	Name string

	// BaseURL is the inference server endpoint.
	BaseURL string

	// Timeout bounds a single request.
	Timeout time.Duration

	// RequestsPerSecond paces embedding requests. 0 is unlimited.
	RequestsPerSecond float64

	// MaxEdge downsizes images whose longest edge exceeds it before upload. 0 disables.
	MaxEdge int
}

// QuerySettings configures the query pipeline.
type QuerySettings struct {
	// K is the number of neighbours requested.
	K int

	// Dir is the directory random query images are picked from.
	Dir string

	// Viewer selects how hits are displayed.
	Viewer ViewerMode
}

// Settings holds all application settings.
// It is built once per process and passed to each component.
type Settings struct {
	Search SearchSettings
	Ingest IngestSettings
	Model  ModelSettings
	Query  QuerySettings

	// DataDir holds local state (run history, sqlite index).
	// Empty selects ~/.imgsearch/data.
	DataDir string
}

// DefaultSettings returns settings with the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Search: SearchSettings{
			Backend:            BackendOpenSearch,
			Scheme:             "https",
			Host:               "localhost",
			Port:               9200,
			Username:           "admin",
			Password:           "admin",
			InsecureSkipVerify: true,
			Compress:           true,
			IndexName:          "image-embeddings",
		},
		Ingest: IngestSettings{
			ChunkSize:  200,
			MaxImages:  200000,
			ImagesRoot: "images",
			Pattern:    "**/*.{jpg,jpeg,JPG,JPEG}",
			Workers:    1,
		},
		Model: ModelSettings{
			Name:    "clip-ViT-L-14",
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
			MaxEdge: 512,
		},
		Query: QuerySettings{
			K:      DefaultK,
			Dir:    "images",
			Viewer: ViewerPrint,
		},
	}
}

// Validate checks every field and reports all problems at once.
func (s Settings) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...))
	}

	if !s.Search.Backend.IsValid() {
		invalid("unknown backend %q", s.Search.Backend)
	}
	if s.Search.Backend.IsRemote() {
		if s.Search.Scheme != "http" && s.Search.Scheme != "https" {
			invalid("scheme must be http or https, got %q", s.Search.Scheme)
		}
		if s.Search.Host == "" {
			invalid("host is required")
		}
		if s.Search.Port <= 0 || s.Search.Port > 65535 {
			invalid("port out of range: %d", s.Search.Port)
		}
	}
	if s.Search.IndexName == "" {
		invalid("index name is required")
	}
	if s.Ingest.ChunkSize <= 0 {
		invalid("chunk size must be positive, got %d", s.Ingest.ChunkSize)
	}
	if s.Ingest.MaxImages <= 0 {
		invalid("max images must be positive, got %d", s.Ingest.MaxImages)
	}
	if s.Ingest.Workers <= 0 {
		invalid("workers must be positive, got %d", s.Ingest.Workers)
	}
	if s.Ingest.Pattern == "" {
		invalid("pattern is required")
	}
	if s.Model.Name == "" {
		invalid("model name is required")
	}
	if s.Model.RequestsPerSecond < 0 {
		invalid("requests per second must not be negative")
	}
	if s.Model.MaxEdge < 0 {
		invalid("max edge must not be negative")
	}
	if s.Query.K <= 0 {
		invalid("k must be positive, got %d", s.Query.K)
	}
	if !s.Query.Viewer.IsValid() {
		invalid("unknown viewer %q", s.Query.Viewer)
	}

	return errors.Join(errs...)
}
