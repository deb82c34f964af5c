package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

// defaultRunLimit is the number of runs listed when no limit is given.
const defaultRunLimit = 20

// FindSimilarInput is the input schema for the find_similar_images tool.
type FindSimilarInput struct {
	ImagePath string `json:"image_path,omitempty" jsonschema:"path of the query image; empty picks a random image from the query directory"`
	K         int    `json:"k,omitempty" jsonschema:"number of neighbours to return (default from settings)"`
}

// FindSimilarOutput is the output schema for the find_similar_images tool.
type FindSimilarOutput struct {
	QueryImage string        `json:"query_image"`
	Results    []ImageResult `json:"results"`
	Count      int           `json:"count"`
}

// ImageResult is a single neighbour.
type ImageResult struct {
	Rank         int       `json:"rank"`
	ID           string    `json:"id"`
	Score        float64   `json:"score"`
	ImageName    string    `json:"image_name"`
	RelativePath string    `json:"relative_path,omitempty"`
	Path         string    `json:"path"`
	Date         string    `json:"date,omitempty"`
	Location     []float64 `json:"location,omitempty" jsonschema:"[lon, lat] in decimal degrees"`
}

// ListRunsInput is the input schema for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 20)"`
}

// ListRunsOutput is the output schema for the list_runs tool.
type ListRunsOutput struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

// RunSummary is the short form of an ingestion report.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	IndexName       string    `json:"index_name"`
	State           string    `json:"state"`
	StartedAt       time.Time `json:"started_at"`
	ImagesProcessed int       `json:"images_processed"`
	DocumentsLoaded int       `json:"documents_loaded"`
	Error           string    `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_similar_images",
		Description: "Find indexed images most similar to a query image",
	}, s.handleFindSimilar)

	if s.ports.Runs != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_runs",
			Description: "List recent ingestion runs, newest first",
		}, s.handleListRuns)
	}
}

func (s *Server) handleFindSimilar(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindSimilarInput,
) (*mcp.CallToolResult, FindSimilarOutput, error) {
	result, err := s.ports.Query.Query(ctx, driving.QueryOptions{ImagePath: input.ImagePath, K: input.K})
	if err != nil {
		return nil, FindSimilarOutput{}, err
	}

	output := FindSimilarOutput{
		QueryImage: result.ImagePath,
		Results:    make([]ImageResult, len(result.Hits)),
		Count:      len(result.Hits),
	}
	for i, hit := range result.Hits {
		doc := hit.Document
		r := ImageResult{
			Rank:         i + 1,
			ID:           hit.ID,
			Score:        hit.Score,
			ImageName:    doc.ImageName,
			RelativePath: doc.RelativePath,
			Path:         s.ports.Query.ResolvePath(hit),
		}
		if d, ok := doc.Exif.Date.Get(); ok {
			r.Date = d.Format(domain.DocumentDateLayout)
		}
		if loc, ok := doc.Exif.Location.Get(); ok {
			r.Location = []float64{loc.Lon, loc.Lat}
		}
		output.Results[i] = r
	}

	return nil, output, nil
}

func (s *Server) handleListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}

	reports, err := s.ports.Runs.List(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}

	output := ListRunsOutput{
		Runs:  make([]RunSummary, len(reports)),
		Count: len(reports),
	}
	for i := range reports {
		output.Runs[i] = summarise(&reports[i])
	}
	return nil, output, nil
}

func summarise(r *domain.IngestReport) RunSummary {
	return RunSummary{
		RunID:           r.RunID,
		IndexName:       r.IndexName,
		State:           r.State.String(),
		StartedAt:       r.StartedAt,
		ImagesProcessed: r.ImagesProcessed,
		DocumentsLoaded: r.DocumentsLoaded(),
		Error:           r.Error,
	}
}
