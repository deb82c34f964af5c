package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <dump-file>",
	Short: "Load a bulk dump into the search index",
	Long: `Loads the documents of a file written by "ingest --dump" into the index
without embedding any image. The index is created when missing; the
target index named inside the dump is ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

// replayOverrides maps replay flags to setting keys.
var replayOverrides = map[string]string{
	"chunk-size":        "ingest.chunk_size",
	"continue-on-error": "ingest.continue_on_error",
	"schema":            "search.schema_path",
}

func init() {
	f := replayCmd.Flags()
	f.Int("chunk-size", 0, "documents per bulk request")
	f.Bool("continue-on-error", false, "keep loading after a chunk fails")
	f.String("schema", "", "JSON file with index settings and mappings")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	settings, err := effectiveSettings(cmd, replayOverrides)
	if err != nil {
		return err
	}

	svcs, err := buildServices(cmd, settings, ServiceOptions{})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)
	if svcs.Ingest == nil {
		return errors.New("ingest service not configured")
	}

	cmd.Printf("Replaying %s into %s (%s)\n", args[0], settings.Search.IndexName, settings.Search.Backend)

	report, runErr := svcs.Ingest.Replay(cmd.Context(), args[0])
	if report != nil {
		printIngestReport(cmd, report)
	}
	if runErr != nil {
		return fmt.Errorf("replay failed: %w", runErr)
	}
	cmd.Println("Done!")
	return nil
}
