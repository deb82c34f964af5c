package mcp

import (
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Query finds similar images.
	Query driving.QueryService

	// Runs exposes ingestion history. Optional.
	Runs driving.RunHistory
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
