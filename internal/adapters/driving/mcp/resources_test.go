package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestExtractRunID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid run URI", "imgsearch://runs/run-42", "run-42"},
		{"invalid prefix", "file://runs/run-42", ""},
		{"nested path", "imgsearch://runs/run-42/chunks", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRunID(tt.uri))
		})
	}
}

func testRuns() *mockRunHistory {
	return &mockRunHistory{reports: []domain.IngestReport{
		{RunID: "run-2", IndexName: "image-embeddings", State: domain.StateFailed, Error: "flush: timeout"},
		{RunID: "run-1", IndexName: "image-embeddings", State: domain.StateDone},
	}}
}

func TestServer_handleRunsResource(t *testing.T) {
	server, err := NewServer(&Ports{Query: &mockQueryService{}, Runs: testRuns()})
	require.NoError(t, err)

	result, err := server.handleRunsResource(context.Background(), makeReadResourceRequest("imgsearch://runs"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var summaries []RunSummary
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-2", summaries[0].RunID)
	assert.Equal(t, "flush: timeout", summaries[0].Error)
}

func TestServer_handleRunsResource_Error(t *testing.T) {
	server, err := NewServer(&Ports{Query: &mockQueryService{}, Runs: &mockRunHistory{err: errors.New("boom")}})
	require.NoError(t, err)

	_, err = server.handleRunsResource(context.Background(), makeReadResourceRequest("imgsearch://runs"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing runs")
}

func TestServer_handleRunResource(t *testing.T) {
	server, err := NewServer(&Ports{Query: &mockQueryService{}, Runs: testRuns()})
	require.NoError(t, err)

	t.Run("returns the report", func(t *testing.T) {
		result, err := server.handleRunResource(context.Background(), makeReadResourceRequest("imgsearch://runs/run-1"))
		require.NoError(t, err)

		var report domain.IngestReport
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &report))
		assert.Equal(t, "run-1", report.RunID)
		assert.Equal(t, domain.StateDone, report.State)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := server.handleRunResource(context.Background(), makeReadResourceRequest("imgsearch://runs/nope"))
		assert.Error(t, err)
	})

	t.Run("malformed URI", func(t *testing.T) {
		_, err := server.handleRunResource(context.Background(), makeReadResourceRequest("imgsearch://runs/"))
		assert.Error(t, err)
	})
}
