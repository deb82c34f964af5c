package local

import (
	"encoding/json"
	"time"

	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// BulkRecorder collects per-item outcomes and renders an OpenSearch-shaped response.
type BulkRecorder struct {
	start time.Time
	items []map[string]itemResult
	fails int
}

type itemResult struct {
	Index  string     `json:"_index"`
	ID     string     `json:"_id"`
	Status int        `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  *itemError `json:"error,omitempty"`
}

type itemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// NewBulkRecorder starts timing a bulk request.
func NewBulkRecorder() *BulkRecorder {
	return &BulkRecorder{start: time.Now()}
}

// Created records a stored document.
func (r *BulkRecorder) Created(a Action) {
	r.items = append(r.items, map[string]itemResult{
		"index": {Index: a.Index, ID: a.ID, Status: 201, Result: "created"},
	})
}

// Failed records a rejected document.
func (r *BulkRecorder) Failed(a Action, status int, errType, reason string) {
	r.fails++
	r.items = append(r.items, map[string]itemResult{
		"index": {Index: a.Index, ID: a.ID, Status: status, Error: &itemError{Type: errType, Reason: reason}},
	})
}

// Response builds the bulk response.
func (r *BulkRecorder) Response() *driven.BulkResponse {
	took := time.Since(r.start)
	raw, _ := json.Marshal(map[string]any{
		"took":   took.Milliseconds(),
		"errors": r.fails > 0,
		"items":  r.items,
	})
	return &driven.BulkResponse{
		Took:        took,
		Items:       len(r.items),
		FailedItems: r.fails,
		Raw:         raw,
	}
}
