package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure the adapter implements the interfaces.
var (
	_ driven.ModelLoader   = (*Loader)(nil)
	_ driven.ImageEmbedder = (*Embedder)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 60 * time.Second
	DefaultMaxEdge = 512
	jpegQuality    = 90
)

// Config holds configuration for the inference server client.
type Config struct {
	// BaseURL is the inference server base URL (default: http://localhost:8000).
	BaseURL string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// RequestsPerSecond paces embedding requests. 0 disables pacing.
	RequestsPerSecond float64

	// MaxEdge is the longest image edge sent to the server. 0 sends images as-is.
	MaxEdge int
}

// ConfigFromSettings maps model settings to a client config.
func ConfigFromSettings(s domain.ModelSettings) Config {
	return Config{
		BaseURL:           s.BaseURL,
		Timeout:           s.Timeout,
		RequestsPerSecond: s.RequestsPerSecond,
		MaxEdge:           s.MaxEdge,
	}
}

// Loader resolves model names against the inference server.
type Loader struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	maxEdge int
}

// NewLoader creates a new loader. All embedders it returns share its
// HTTP client and rate limiter.
func NewLoader(cfg Config) *Loader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Loader{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		maxEdge: cfg.MaxEdge,
	}
}

// modelInfo is the model metadata response.
type modelInfo struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
}

// Load asks the server for the model and returns an embedder bound to it.
func (l *Loader) Load(ctx context.Context, name string) (driven.ImageEmbedder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v1/models/"+url.PathEscape(name), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedModel, name)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s", domain.ErrModelUnavailable, statusError(resp))
	}

	var info modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode model info: %w", err)
	}
	if info.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: model %s reports %d dimensions", domain.ErrModelUnavailable, name, info.Dimensions)
	}
	if info.Name == "" {
		info.Name = name
	}

	return &Embedder{
		loader:     l,
		model:      info.Name,
		dimensions: info.Dimensions,
	}, nil
}

// Embedder generates image embeddings with one model.
type Embedder struct {
	loader     *Loader
	model      string
	dimensions int
}

// embedRequest is the embedding request format.
type embedRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

// embedResponse is the embedding response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedImage generates a vector embedding for the given image.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if e.loader.limiter != nil {
		if err := e.loader.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	encoded, err := EncodeImage(img, e.loader.maxEdge)
	if err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(embedRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(encoded),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.loader.baseURL+"/v1/embeddings/image",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.loader.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(embedResp.Embedding), e.dimensions)
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the name of the embedding model being used.
func (e *Embedder) ModelName() string {
	return e.model
}

// Ping validates the server is reachable via /health.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.loader.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("inference: failed to create ping request: %w", err)
	}

	resp, err := e.loader.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// EncodeImage downscales img so its longest edge is at most maxEdge and
// encodes it as JPEG. maxEdge <= 0 keeps the original size.
func EncodeImage(img image.Image, maxEdge int) ([]byte, error) {
	img = Downscale(img, maxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale returns img resized to fit within maxEdge, preserving aspect ratio.
// Smaller images are returned unchanged.
func Downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("inference: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("inference: API returned status %d: %s", resp.StatusCode, msg)
}
