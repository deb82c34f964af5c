package cli

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

func doneReport() *domain.IngestReport {
	return &domain.IngestReport{
		RunID:             "run-42",
		IndexName:         "image-embeddings",
		State:             domain.StateDone,
		ModelLoadDuration: 1500 * time.Millisecond,
		EmbedDuration:     3 * time.Second,
		TotalDuration:     5 * time.Second,
		ImagesFound:       3,
		ImagesProcessed:   3,
		ExifMissing:       1,
		Chunks: []domain.ChunkResult{
			{Number: 1, Documents: 2},
			{Number: 2, Documents: 1},
		},
	}
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest", ingestCmd.Use)
	assert.Equal(t, "Embed images and load them into the search index", ingestCmd.Short)
}

func TestIngestCmd_HasFlags(t *testing.T) {
	for _, name := range []string{"images-root", "pattern", "chunk-size", "max-images", "workers",
		"continue-on-error", "reuse-index", "schema", "model", "dump", "dry-run"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "w", ingestCmd.Flags().Lookup("workers").Shorthand)
}

func TestIngestCmd_PrintsReport(t *testing.T) {
	ingest := &mockIngestService{report: doneReport()}
	env := setupTestServices(t, &Services{Ingest: ingest})

	out, err := executeCommand(t, "ingest")
	require.NoError(t, err)

	assert.Contains(t, out, "Duration load model = 1.5s")
	assert.Contains(t, out, "Duration creating image embeddings = 3s")
	assert.Contains(t, out, "Images: 3 found, 3 processed, 1 without EXIF, 0 failed")
	assert.Contains(t, out, "Chunks: 2 sent, 0 failed, 3 documents loaded")
	assert.Contains(t, out, "Total duration = 5s")
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "Done!")

	require.Len(t, ingest.opts, 1)
	assert.False(t, ingest.opts[0].DryRun)
	assert.NotNil(t, ingest.opts[0].Progress)
	assert.Equal(t, 1, env.closed)
}

func TestIngestCmd_FlagOverrides(t *testing.T) {
	env := setupTestServices(t, &Services{Ingest: &mockIngestService{report: doneReport()}})

	_, err := executeCommand(t, "ingest",
		"--images-root", "/photos",
		"--pattern", "**/*.png",
		"--chunk-size", "50",
		"--max-images", "10",
		"-w", "4",
		"--continue-on-error",
		"--reuse-index",
		"--schema", "mappings.json",
		"--model", "clip-ViT-B-32",
	)
	require.NoError(t, err)
	require.Len(t, env.settings, 1)

	s := env.settings[0]
	assert.Equal(t, "/photos", s.Ingest.ImagesRoot)
	assert.Equal(t, "**/*.png", s.Ingest.Pattern)
	assert.Equal(t, 50, s.Ingest.ChunkSize)
	assert.Equal(t, 10, s.Ingest.MaxImages)
	assert.Equal(t, 4, s.Ingest.Workers)
	assert.True(t, s.Ingest.ContinueOnError)
	assert.True(t, s.Search.ReuseIndex)
	assert.Equal(t, "mappings.json", s.Search.SchemaPath)
	assert.Equal(t, "clip-ViT-B-32", s.Model.Name)
}

func TestIngestCmd_StoredSettingsApply(t *testing.T) {
	env := setupTestServices(t, &Services{Ingest: &mockIngestService{report: doneReport()}})
	require.NoError(t, env.store.Set("ingest.chunk_size", int64(25)))

	_, err := executeCommand(t, "ingest")
	require.NoError(t, err)
	assert.Equal(t, 25, env.settings[0].Ingest.ChunkSize)
}

func TestIngestCmd_DryRunWithDump(t *testing.T) {
	ingest := &mockIngestService{report: &domain.IngestReport{State: domain.StateDocsBuilt}}
	env := setupTestServices(t, &Services{Ingest: ingest})

	out, err := executeCommand(t, "ingest", "--dry-run", "--dump", "bulk.ndjson.gz")
	require.NoError(t, err)

	assert.Contains(t, out, "Dry run")
	require.Len(t, ingest.opts, 1)
	assert.True(t, ingest.opts[0].DryRun)
	assert.Equal(t, "bulk.ndjson.gz", env.options[0].DumpPath)
}

func TestIngestCmd_Failure(t *testing.T) {
	report := doneReport()
	report.State = domain.StateFailed
	report.Chunks[1].Error = "connection reset"
	report.Failures = []domain.ImageFailure{{Path: "images/bad.jpg", Error: "unexpected EOF"}}

	stageErr := &domain.StageError{Stage: domain.StateBulkLoading, Err: errors.New("bulk chunk 2: connection reset")}
	env := setupTestServices(t, &Services{Ingest: &mockIngestService{report: report, err: stageErr}})

	out, err := executeCommand(t, "ingest")
	require.Error(t, err)

	var se *domain.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StateBulkLoading, se.Stage)
	assert.Contains(t, err.Error(), "ingest failed")

	assert.Contains(t, out, "images/bad.jpg: unexpected EOF")
	assert.Contains(t, out, "chunk 2: connection reset")
	assert.Contains(t, out, "FAILED")
	assert.NotContains(t, out, "Done!")
	assert.Equal(t, 1, env.closed)
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	setupTestServices(t, &Services{})

	_, err := executeCommand(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest service not configured")
}

func TestIngestCmd_RejectsArgs(t *testing.T) {
	setupTestServices(t, &Services{Ingest: &mockIngestService{}})

	_, err := executeCommand(t, "ingest", "extra")
	assert.Error(t, err)
}

func TestIngestCmd_PrintsExifWarningsAndBulkTimes(t *testing.T) {
	report := doneReport()
	report.Chunks[0].Took = 40 * time.Millisecond
	report.Chunks[0].EngineTook = 12 * time.Millisecond
	report.Chunks[1].Took = 20 * time.Millisecond
	report.Chunks[1].EngineTook = 8 * time.Millisecond
	for i := range 7 {
		report.ExifErrors = append(report.ExifErrors, domain.ImageFailure{
			Path:  fmt.Sprintf("trips/img%d.jpg", i),
			Error: "no exif data",
		})
	}
	setupTestServices(t, &Services{Ingest: &mockIngestService{report: report}})

	out, err := executeCommand(t, "ingest")
	require.NoError(t, err)

	assert.Contains(t, out, "EXIF warnings: 7")
	assert.Contains(t, out, "trips/img0.jpg: no exif data")
	assert.Contains(t, out, "trips/img4.jpg: no exif data")
	assert.NotContains(t, out, "trips/img5.jpg")
	assert.Contains(t, out, "... and 2 more")
	assert.Contains(t, out, "Duration bulk load = 60ms (engine 20ms)")
}
