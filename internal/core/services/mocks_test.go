package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// --- Test doubles shared by the service tests ---

// fakeEmbedder returns a vector derived from the top-left pixel.
type fakeEmbedder struct {
	name    string
	dims    int
	err     error
	pingErr error
	calls   int
	closed  bool
	mu      sync.Mutex
}

func (e *fakeEmbedder) EmbedImage(_ context.Context, img image.Image) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	vec := make([]float32, e.dims)
	for i := range vec {
		switch i % 3 {
		case 0:
			vec[i] = float32(r>>8) + 1
		case 1:
			vec[i] = float32(g>>8) + 1
		default:
			vec[i] = float32(b>>8) + 1
		}
	}
	return vec, nil
}

func (e *fakeEmbedder) Dimensions() int              { return e.dims }
func (e *fakeEmbedder) ModelName() string            { return e.name }
func (e *fakeEmbedder) Ping(_ context.Context) error { return e.pingErr }
func (e *fakeEmbedder) Close() error {
	e.closed = true
	return nil
}

// fakeLoader hands out a single embedder.
type fakeLoader struct {
	embedder *fakeEmbedder
	err      error
	loads    int
	names    []string
}

func (l *fakeLoader) Load(_ context.Context, name string) (driven.ImageEmbedder, error) {
	l.loads++
	l.names = append(l.names, name)
	if l.err != nil {
		return nil, l.err
	}
	return l.embedder, nil
}

func newFakeLoader(dims int) *fakeLoader {
	return &fakeLoader{embedder: &fakeEmbedder{name: "clip-test", dims: dims}}
}

// fakeEnumerator returns a fixed list.
type fakeEnumerator struct {
	paths []string
	err   error
	root  string
	limit int
}

func (f *fakeEnumerator) Enumerate(_ context.Context, root, _ string, limit int) ([]string, error) {
	f.root = root
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.paths) > limit {
		return f.paths[:limit], nil
	}
	return f.paths, nil
}

func (f *fakeEnumerator) Match(_, rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	return ext == ".png" || ext == ".jpg"
}

// fakeMetadata returns EXIF per file name; unknown files have none.
type fakeMetadata struct {
	exif map[string]domain.Exif
}

func (m *fakeMetadata) ReadExif(path string) (domain.Exif, error) {
	if x, ok := m.exif[filepath.Base(path)]; ok {
		return x, nil
	}
	return domain.Exif{}, domain.ErrNoExif
}

// fakeIndex records every call.
type fakeIndex struct {
	mu sync.Mutex

	created    []string
	schemas    []domain.IndexSchema
	payloads   [][]byte
	flushed    []string
	queries    []domain.KNNQuery
	createErr  error
	bulkErrAt  map[int]error
	failItems  int
	flushErr   error
	searchHits []domain.Hit
	searchErr  error
	pingErr    error
	pings      int
	took       time.Duration
}

func (f *fakeIndex) CreateIndex(_ context.Context, name string, schema domain.IndexSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.created {
		if existing == name {
			return domain.ErrIndexExists
		}
	}
	f.created = append(f.created, name)
	f.schemas = append(f.schemas, schema)
	return nil
}

func (f *fakeIndex) Bulk(_ context.Context, payload []byte) (*driven.BulkResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if err, ok := f.bulkErrAt[len(f.payloads)]; ok {
		return nil, err
	}
	items := strings.Count(string(payload), "\n") / 2
	return &driven.BulkResponse{Took: f.took, Items: items, FailedItems: f.failItems, Raw: []byte(`{"errors":false}`)}, nil
}

func (f *fakeIndex) Flush(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, name)
	return f.flushErr
}

func (f *fakeIndex) KNNSearch(_ context.Context, _ string, query domain.KNNQuery) ([]domain.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.searchHits, f.searchErr
}

func (f *fakeIndex) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeIndex) Close() error { return nil }

// fakeRunStore keeps reports in memory.
type fakeRunStore struct {
	mu      sync.Mutex
	reports []domain.IngestReport
	saveErr error
}

func (r *fakeRunStore) Save(_ context.Context, report domain.IngestReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeRunStore) Get(_ context.Context, runID string) (*domain.IngestReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reports {
		if r.reports[i].RunID == runID {
			rep := r.reports[i]
			return &rep, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRunStore) List(_ context.Context, limit int) ([]domain.IngestReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.IngestReport, 0, len(r.reports))
	for i := len(r.reports) - 1; i >= 0; i-- {
		out = append(out, r.reports[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeSink collects payloads.
type fakeSink struct {
	payloads [][]byte
	err      error
}

func (s *fakeSink) Write(payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *fakeSink) Close() error { return nil }

// fakeSelector returns a fixed path.
type fakeSelector struct {
	path string
	err  error
}

func (s *fakeSelector) Select(_ context.Context) (string, error) {
	return s.path, s.err
}

var errBoom = errors.New("boom")

// writeImage writes a 4x4 PNG filled with c and returns its path.
func writeImage(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func testSettings(root string) domain.Settings {
	settings := domain.DefaultSettings()
	settings.Ingest.ImagesRoot = root
	settings.Ingest.ChunkSize = 2
	settings.Search.IndexName = "image-embeddings"
	return settings
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}
