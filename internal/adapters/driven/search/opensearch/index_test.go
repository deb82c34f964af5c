package opensearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/services"
)

// fakeCluster records the requests an OpenSearch node would receive.
type fakeCluster struct {
	mu       sync.Mutex
	requests []string
	bulks    [][]byte
	created  map[string][]byte
	encoding []string
	auth     []string
}

func (c *fakeCluster) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /{index}", func(w http.ResponseWriter, r *http.Request) {
		body := c.record(t, r)
		index := r.PathValue("index")
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.created[index]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [`+
				index+`] already exists"},"status":400}`)
			return
		}
		c.created[index] = body
		_, _ = io.WriteString(w, `{"acknowledged":true,"index":"`+index+`"}`)
	})

	mux.HandleFunc("POST /_bulk", func(w http.ResponseWriter, r *http.Request) {
		body := c.record(t, r)
		c.mu.Lock()
		c.bulks = append(c.bulks, body)
		c.mu.Unlock()

		var items []string
		scanner := bufio.NewScanner(bytes.NewReader(body))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for n := 0; scanner.Scan(); n++ {
			if n%2 == 0 {
				items = append(items, `{"index":{"_id":"`+strconv.Itoa(n/2)+`","status":201}}`)
			}
		}
		_, _ = io.WriteString(w, `{"took":7,"errors":false,"items":[`+strings.Join(items, ",")+`]}`)
	})

	mux.HandleFunc("POST /{index}/_flush", func(w http.ResponseWriter, r *http.Request) {
		c.record(t, r)
		_, _ = io.WriteString(w, `{"_shards":{"total":1,"successful":1,"failed":0}}`)
	})

	mux.HandleFunc("POST /{index}/_search", func(w http.ResponseWriter, r *http.Request) {
		c.record(t, r)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[
			{"_id":"a","_score":0.98,"_source":{"image_id":"a","image_name":"a.jpg","image_embedding":[1,0],
			 "relative_path":"trips/a.jpg","exif":{"date":"2021-07-04T18:30:00","location":[-0.12,51.5]}}},
			{"_id":"b","_score":0.51,"_source":{"image_id":"b","image_name":"b.jpg","image_embedding":[0,1],
			 "relative_path":"b.jpg","exif":{}}}]}}`)
	})

	mux.HandleFunc("HEAD /", func(w http.ResponseWriter, r *http.Request) {
		c.record(t, r)
	})

	return withInfo(mux)
}

// withInfo answers the cluster info endpoint so clients that query it
// before the first request see a compatible node.
func withInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"cluster_name":"test","version":{"number":"2.11.0","distribution":"opensearch"}}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// record stores the request line and returns the decompressed body.
func (c *fakeCluster) record(t *testing.T, r *http.Request) []byte {
	t.Helper()

	var reader io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		defer gz.Close()
		reader = gz
	}
	body, err := io.ReadAll(reader)
	require.NoError(t, err)

	user, _, _ := r.BasicAuth()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, r.Method+" "+r.URL.Path)
	c.encoding = append(c.encoding, r.Header.Get("Content-Encoding"))
	c.auth = append(c.auth, user)
	return body
}

func newTestIndex(t *testing.T, compress bool) (*Index, *fakeCluster) {
	t.Helper()

	cluster := &fakeCluster{created: make(map[string][]byte)}
	server := httptest.NewServer(cluster.handler(t))
	t.Cleanup(server.Close)

	idx := indexFor(t, server.URL, compress)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, cluster
}

func TestIndex_IngestThreeImagesInTwoChunks(t *testing.T) {
	idx, cluster := newTestIndex(t, false)
	ctx := context.Background()

	docs := []domain.ImageDocument{
		{ImageID: "a", ImageName: "a.jpg", Embedding: []float32{1, 0}, RelativePath: "a.jpg"},
		{ImageID: "b", ImageName: "b.jpg", Embedding: []float32{0, 1}, RelativePath: "b.jpg"},
		{ImageID: "c", ImageName: "c.jpg", Embedding: []float32{1, 1}, RelativePath: "c.jpg"},
	}

	require.NoError(t, idx.CreateIndex(ctx, "image-embeddings", domain.DefaultIndexSchema(2)))
	for _, chunk := range services.ChunkDocuments(docs, 2) {
		payload, err := services.BuildBulkPayload("image-embeddings", chunk)
		require.NoError(t, err)
		resp, err := idx.Bulk(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, len(chunk), resp.Items)
		assert.Zero(t, resp.FailedItems)
	}
	require.NoError(t, idx.Flush(ctx, "image-embeddings"))

	assert.Equal(t, []string{
		"PUT /image-embeddings",
		"POST /_bulk",
		"POST /_bulk",
		"POST /image-embeddings/_flush",
	}, cluster.requests)

	require.Len(t, cluster.bulks, 2)
	assert.Equal(t, 4, bytes.Count(cluster.bulks[0], []byte("\n")))
	assert.Equal(t, 2, bytes.Count(cluster.bulks[1], []byte("\n")))
	assert.Contains(t, cluster.auth, "admin")

	var schema map[string]any
	require.NoError(t, json.Unmarshal(cluster.created["image-embeddings"], &schema))
	assert.Contains(t, schema, "mappings")
}

func TestIndex_CompressedBodies(t *testing.T) {
	idx, cluster := newTestIndex(t, true)

	payload, err := services.BuildBulkPayload("image-embeddings", []domain.ImageDocument{
		{ImageID: "a", ImageName: "a.jpg", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	_, err = idx.Bulk(context.Background(), payload)
	require.NoError(t, err)

	require.Len(t, cluster.bulks, 1)
	assert.Equal(t, payload, cluster.bulks[0])
	assert.Equal(t, []string{"gzip"}, cluster.encoding)
}

func TestIndex_CreateExisting(t *testing.T) {
	idx, _ := newTestIndex(t, false)
	ctx := context.Background()

	require.NoError(t, idx.CreateIndex(ctx, "image-embeddings", domain.DefaultIndexSchema(2)))
	err := idx.CreateIndex(ctx, "image-embeddings", domain.DefaultIndexSchema(2))
	assert.ErrorIs(t, err, domain.ErrIndexExists)
}

func TestIndex_KNNSearch(t *testing.T) {
	idx, cluster := newTestIndex(t, false)

	hits, err := idx.KNNSearch(context.Background(), "image-embeddings", domain.NewKNNQuery([]float32{1, 0}, 2))
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0.98, hits[0].Score, 1e-9)
	assert.Equal(t, "trips/a.jpg", hits[0].Document.RelativePath)
	loc, ok := hits[0].Document.Exif.Location.Get()
	require.True(t, ok)
	assert.InDelta(t, 51.5, loc.Lat, 1e-9)
	assert.True(t, hits[1].Document.Exif.IsEmpty())
	assert.Equal(t, []string{"POST /image-embeddings/_search"}, cluster.requests)
}

func TestIndex_Ping(t *testing.T) {
	idx, _ := newTestIndex(t, false)
	assert.NoError(t, idx.Ping(context.Background()))
}

func TestIndex_BulkItemErrors(t *testing.T) {
	server := httptest.NewServer(withInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"took":3,"errors":true,"items":[
			{"index":{"_id":"1","status":201}},
			{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}]}`)
	})))
	defer server.Close()

	idx := indexFor(t, server.URL, false)
	resp, err := idx.Bulk(context.Background(), []byte("{}\n{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Items)
	assert.Equal(t, 1, resp.FailedItems)
	assert.Contains(t, string(resp.Raw), "mapper_parsing_exception")
}

func TestIndex_RequestErrors(t *testing.T) {
	server := httptest.NewServer(withInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
	})))
	defer server.Close()

	idx := indexFor(t, server.URL, false)
	ctx := context.Background()

	err := idx.Flush(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = idx.KNNSearch(ctx, "missing", domain.NewKNNQuery([]float32{1}, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "index_not_found_exception")

	_, err = idx.Bulk(ctx, []byte("{}\n{}\n"))
	assert.Error(t, err)
}

func TestIndex_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	idx := indexFor(t, url, false)
	err := idx.CreateIndex(context.Background(), "image-embeddings", domain.DefaultIndexSchema(2))
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func indexFor(t *testing.T, url string, compress bool) *Index {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(url, "http://"))
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	settings := domain.DefaultSettings().Search
	settings.Scheme = "http"
	settings.Host = host
	settings.Port = portNum
	settings.Compress = compress

	idx, err := NewIndex(settings)
	require.NoError(t, err)
	return idx
}
