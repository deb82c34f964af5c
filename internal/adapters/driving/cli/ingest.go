package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

var (
	ingestDump   string
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed images and load them into the search index",
	Long: `Runs the ingestion pipeline over the configured image root:

  1. load the embedding model
  2. find images matching the pattern (default **/*.{jpg,jpeg,JPG,JPEG})
  3. embed each image and read its EXIF date and GPS location
  4. create the index from the schema
  5. bulk-load the documents in chunks and flush the index

With --dry-run the pipeline stops after building the bulk payloads, which
are written to --dump if given.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

// ingestOverrides maps ingest flags to setting keys.
var ingestOverrides = map[string]string{
	"images-root":       "ingest.images_root",
	"pattern":           "ingest.pattern",
	"chunk-size":        "ingest.chunk_size",
	"max-images":        "ingest.max_images",
	"workers":           "ingest.workers",
	"continue-on-error": "ingest.continue_on_error",
	"reuse-index":       "search.reuse_index",
	"schema":            "search.schema_path",
	"model":             "model.name",
}

func init() {
	f := ingestCmd.Flags()
	f.String("images-root", "", "directory scanned for images")
	f.String("pattern", "", "recursive glob relative to the image root")
	f.Int("chunk-size", 0, "documents per bulk request")
	f.Int("max-images", 0, "maximum number of images")
	f.IntP("workers", "w", 0, "images embedded concurrently")
	f.Bool("continue-on-error", false, "keep loading after a chunk fails")
	f.Bool("reuse-index", false, "load into an existing index")
	f.String("schema", "", "JSON file with index settings and mappings")
	f.String("model", "", "embedding model name")
	f.StringVar(&ingestDump, "dump", "", "also write bulk payloads to this file (.gz compresses)")
	f.BoolVar(&ingestDryRun, "dry-run", false, "build payloads without touching the index")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	settings, err := effectiveSettings(cmd, ingestOverrides)
	if err != nil {
		return err
	}
	if ingestDryRun {
		cmd.Println("Dry run: documents are built but not sent to the index.")
	}

	svcs, err := buildServices(cmd, settings, ServiceOptions{DumpPath: ingestDump})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)
	if svcs.Ingest == nil {
		return errors.New("ingest service not configured")
	}

	cmd.Printf("Indexing %s into %s (%s)\n", settings.Ingest.ImagesRoot, settings.Search.IndexName, settings.Search.Backend)

	bar := startProgress(cmd.ErrOrStderr())
	report, runErr := svcs.Ingest.Ingest(cmd.Context(), driving.IngestOptions{
		Progress: bar.Update,
		DryRun:   ingestDryRun,
	})
	bar.Stop()

	if report != nil {
		printIngestReport(cmd, report)
	}
	if runErr != nil {
		return fmt.Errorf("ingest failed: %w", runErr)
	}
	cmd.Println("Done!")
	return nil
}

func printIngestReport(cmd *cobra.Command, report *domain.IngestReport) {
	if report.ModelLoadDuration > 0 {
		cmd.Printf("Duration load model = %s\n", formatDuration(report.ModelLoadDuration))
	}
	if report.EmbedDuration > 0 {
		cmd.Printf("Duration creating image embeddings = %s\n", formatDuration(report.EmbedDuration))
	}

	cmd.Printf("Images: %d found, %d processed, %d without EXIF, %d failed\n",
		report.ImagesFound, report.ImagesProcessed, report.ExifMissing, len(report.Failures))
	for _, f := range report.Failures {
		cmd.Printf("  %s %s: %s\n", errorStyle.Render("x"), f.Path, f.Error)
	}
	printExifErrors(cmd, report.ExifErrors)

	if len(report.Chunks) > 0 {
		failed := report.FailedChunks()
		cmd.Printf("Chunks: %d sent, %d failed, %d documents loaded\n",
			len(report.Chunks), len(failed), report.DocumentsLoaded())
		var wall time.Duration
		for _, c := range report.Chunks {
			wall += c.Took
		}
		cmd.Printf("Duration bulk load = %s (engine %s)\n", formatDuration(wall), formatDuration(report.EngineTook()))
		for _, c := range failed {
			reason := c.Error
			if reason == "" {
				reason = fmt.Sprintf("%d rejected documents", c.ItemErrors)
			}
			cmd.Printf("  %s chunk %d: %s\n", errorStyle.Render("x"), c.Number, reason)
		}
	}

	cmd.Printf("Total duration = %s\n", formatDuration(report.TotalDuration))
	cmd.Printf("Run %s: %s\n", mutedStyle.Render(report.RunID), stateLabel(report.State))
}

// maxExifErrors bounds the EXIF problems listed individually.
const maxExifErrors = 5

func printExifErrors(cmd *cobra.Command, errs []domain.ImageFailure) {
	if len(errs) == 0 {
		return
	}
	cmd.Printf("EXIF warnings: %d\n", len(errs))
	for i, f := range errs {
		if i == maxExifErrors {
			cmd.Printf("  ... and %d more\n", len(errs)-maxExifErrors)
			break
		}
		cmd.Printf("  %s %s: %s\n", warnStyle.Render("!"), f.Path, f.Error)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Millisecond).String()
	default:
		return d.String()
	}
}
