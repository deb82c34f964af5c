// Package mcp provides an MCP (Model Context Protocol) server adapter for imgsearch.
// It lets AI assistants find similar images and inspect ingestion runs.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
