package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index new images as they appear",
	Long: `Watches the image root recursively and loads images matching the pattern
into the index shortly after they are written, creating the index first
if needed. An image is loaded at most once per session. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// watchOverrides maps watch flags to setting keys.
var watchOverrides = map[string]string{
	"images-root": "ingest.images_root",
	"pattern":     "ingest.pattern",
}

func init() {
	f := watchCmd.Flags()
	f.String("images-root", "", "directory to watch")
	f.String("pattern", "", "recursive glob relative to the image root")
	f.DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a batch is indexed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	settings, err := effectiveSettings(cmd, watchOverrides)
	if err != nil {
		return err
	}

	svcs, err := buildServices(cmd, settings, ServiceOptions{Debounce: watchDebounce})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)
	if svcs.Watch == nil {
		return errors.New("watch service not configured")
	}

	cmd.Printf("Watching %s for %s (Ctrl+C to stop)\n", settings.Ingest.ImagesRoot, settings.Ingest.Pattern)

	err = svcs.Watch.Watch(cmd.Context(), func(report *domain.IngestReport) {
		status := successStyle.Render("ok")
		if report.State == domain.StateFailed {
			status = errorStyle.Render("failed: " + report.Error)
		}
		cmd.Printf("[%s] indexed %d of %d new images (%s)\n",
			time.Now().Format("15:04:05"), report.DocumentsLoaded(), report.ImagesFound, status)
	})
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	cmd.Println("Stopped.")
	return nil
}
