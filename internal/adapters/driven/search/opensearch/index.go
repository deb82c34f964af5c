package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

const errTypeIndexExists = "resource_already_exists_exception"

// Index is a driven.SearchIndex backed by an OpenSearch cluster.
type Index struct {
	client    *opensearch.Client
	transport *http.Transport
}

// NewIndex creates a client for the cluster described by settings.
// No request is made until the first operation.
func NewIndex(settings domain.SearchSettings) (*Index, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: settings.InsecureSkipVerify, //nolint:gosec // user-controlled setting
		},
		MaxIdleConnsPerHost: 4,
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:           []string{settings.Address()},
		Username:            settings.Username,
		Password:            settings.Password,
		Transport:           transport,
		CompressRequestBody: settings.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w", err)
	}

	return &Index{client: client, transport: transport}, nil
}

// Ping checks the cluster answers.
func (i *Index) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, i.client)
	if err != nil {
		return unavailable(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: ping returned %d", domain.ErrBackendUnavailable, res.StatusCode)
	}
	return nil
}

// CreateIndex creates the index from schema.
func (i *Index) CreateIndex(ctx context.Context, name string, schema domain.IndexSchema) error {
	body, err := schema.Body()
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return unavailable(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading create response: %w", err)
	}
	logger.Debug("Create index %s: %d %s", name, res.StatusCode, raw)

	if !res.IsError() {
		return nil
	}
	apiErr := parseError(res.StatusCode, raw)
	if apiErr.Type == errTypeIndexExists {
		return fmt.Errorf("%w: %s", domain.ErrIndexExists, name)
	}
	return fmt.Errorf("create index %s: %w", name, apiErr)
}

// Bulk sends one NDJSON payload to the _bulk endpoint.
func (i *Index) Bulk(ctx context.Context, payload []byte) (*driven.BulkResponse, error) {
	res, err := opensearchapi.BulkRequest{
		Body: bytes.NewReader(payload),
	}.Do(ctx, i.client)
	if err != nil {
		return nil, unavailable(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bulk response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("bulk: %w", parseError(res.StatusCode, raw))
	}

	var decoded bulkResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding bulk response: %w", err)
	}

	resp := &driven.BulkResponse{
		Took:  time.Duration(decoded.Took) * time.Millisecond,
		Items: len(decoded.Items),
		Raw:   raw,
	}
	for _, item := range decoded.Items {
		for _, result := range item {
			if result.Error != nil || result.Status >= http.StatusMultipleChoices {
				resp.FailedItems++
			}
		}
	}
	return resp, nil
}

// Flush calls the index's _flush endpoint.
func (i *Index) Flush(ctx context.Context, name string) error {
	res, err := opensearchapi.IndicesFlushRequest{
		Index: []string{name},
	}.Do(ctx, i.client)
	if err != nil {
		return unavailable(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading flush response: %w", err)
	}
	logger.Debug("Flush %s: %d %s", name, res.StatusCode, raw)

	if res.IsError() {
		apiErr := parseError(res.StatusCode, raw)
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: index %s: %w", domain.ErrNotFound, name, apiErr)
		}
		return fmt.Errorf("flush %s: %w", name, apiErr)
	}
	return nil
}

// KNNSearch runs a k-NN query and decodes the hits.
func (i *Index) KNNSearch(ctx context.Context, name string, query domain.KNNQuery) ([]domain.Hit, error) {
	body, err := query.Body()
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{name},
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return nil, unavailable(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if res.IsError() {
		apiErr := parseError(res.StatusCode, raw)
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: index %s: %w", domain.ErrNotFound, name, apiErr)
		}
		return nil, fmt.Errorf("search %s: %w", name, apiErr)
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	hits := make([]domain.Hit, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		hits = append(hits, domain.Hit{ID: h.ID, Score: h.Score, Document: h.Source})
	}
	return hits, nil
}

// Close releases idle connections.
func (i *Index) Close() error {
	i.transport.CloseIdleConnections()
	return nil
}

type bulkResponse struct {
	Took   int64                      `json:"took"`
	Errors bool                       `json:"errors"`
	Items  []map[string]bulkItemReply `json:"items"`
}

type bulkItemReply struct {
	ID     string    `json:"_id"`
	Status int       `json:"status"`
	Error  *apiError `json:"error,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string               `json:"_id"`
			Score  float64              `json:"_score"`
			Source domain.ImageDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// apiError is the error object of an OpenSearch error response.
type apiError struct {
	Status int    `json:"-"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e *apiError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

func parseError(status int, raw []byte) *apiError {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	apiErr := &apiError{Status: status}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}
	// The error is either an object or, for some endpoints, a plain string.
	if err := json.Unmarshal(envelope.Error, apiErr); err != nil {
		var reason string
		if json.Unmarshal(envelope.Error, &reason) == nil {
			apiErr.Reason = reason
		}
	}
	return apiErr
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
}
