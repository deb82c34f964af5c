package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driving"
)

var (
	queryJSON bool
	queryOpen bool
)

var queryCmd = &cobra.Command{
	Use:   "query [image]",
	Short: "Find images similar to a query image",
	Long: `Embeds the query image with the ingestion model and returns its k nearest
neighbours from the index.

Without an argument a random image from the query directory is used.
Hits are printed, or opened in the system image viewer with --open.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

// queryOverrides maps query flags to setting keys.
var queryOverrides = map[string]string{
	"k":     "query.k",
	"dir":   "query.dir",
	"model": "model.name",
}

func init() {
	f := queryCmd.Flags()
	f.IntP("k", "k", 0, "number of similar images to return")
	f.String("dir", "", "directory random query images are picked from")
	f.String("model", "", "embedding model name")
	f.BoolVar(&queryOpen, "open", false, "open the query image and hits in the system viewer")
	f.BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	settings, err := effectiveSettings(cmd, queryOverrides)
	if err != nil {
		return err
	}
	if queryOpen {
		settings.Query.Viewer = domain.ViewerOpen
	}

	svcs, err := buildServices(cmd, settings, ServiceOptions{Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)
	if svcs.Query == nil {
		return errors.New("query service not configured")
	}

	opts := driving.QueryOptions{K: settings.Query.K}
	if len(args) == 1 {
		opts.ImagePath = args[0]
	}

	result, err := svcs.Query.Query(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, svcs.Query, result)
	}
	return outputQueryTable(cmd, svcs, settings, result)
}

type jsonHit struct {
	Rank     int        `json:"rank"`
	ID       string     `json:"id"`
	Score    float64    `json:"score"`
	Path     string     `json:"path"`
	Document jsonHitDoc `json:"document"`
}

// jsonHitDoc is an indexed document without its embedding.
type jsonHitDoc struct {
	ImageID      string      `json:"image_id"`
	ImageName    string      `json:"image_name"`
	RelativePath string      `json:"relative_path"`
	Exif         domain.Exif `json:"exif"`
}

func outputQueryJSON(cmd *cobra.Command, query driving.QueryService, result *domain.QueryResult) error {
	out := struct {
		QueryImage string    `json:"query_image"`
		Hits       []jsonHit `json:"hits"`
	}{QueryImage: result.ImagePath, Hits: make([]jsonHit, 0, len(result.Hits))}

	for i, h := range result.Hits {
		out.Hits = append(out.Hits, jsonHit{
			Rank:  i + 1,
			ID:    h.ID,
			Score: h.Score,
			Path:  query.ResolvePath(h),
			Document: jsonHitDoc{
				ImageID:      h.Document.ImageID,
				ImageName:    h.Document.ImageName,
				RelativePath: h.Document.RelativePath,
				Exif:         h.Document.Exif,
			},
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, svcs *Services, settings *domain.Settings, result *domain.QueryResult) error {
	if result.ModelLoadDuration > 0 {
		cmd.Printf("Duration load model = %s\n", formatDuration(result.ModelLoadDuration))
	}
	cmd.Printf("Query image: %s\n", result.ImagePath)

	if len(result.Hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	rows := make([][]string, 0, len(result.Hits))
	for i, h := range result.Hits {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(h.Score, 'f', 4, 64),
			h.Document.ImageName,
			exifDate(h.Document.Exif),
			exifLocation(h.Document.Exif),
		})
	}
	cmd.Println()
	cmd.Print(renderTable([]string{"#", "SCORE", "IMAGE", "DATE", "LOCATION"}, rows))

	if svcs.Viewer == nil {
		return nil
	}

	cmd.Println()
	cmd.Println(titleStyle.Render("Search results:"))
	if settings.Query.Viewer == domain.ViewerOpen {
		if err := svcs.Viewer.Show(cmd.Context(), result.ImagePath); err != nil {
			return fmt.Errorf("failed to show query image: %w", err)
		}
	}
	var errs []error
	for _, h := range result.Hits {
		if err := svcs.Viewer.Show(cmd.Context(), svcs.Query.ResolvePath(h)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to show results: %w", err)
	}
	return nil
}

func exifDate(e domain.Exif) string {
	if d, ok := e.Date.Get(); ok {
		return d.Format(domain.DocumentDateLayout)
	}
	return mutedStyle.Render("-")
}

func exifLocation(e domain.Exif) string {
	if loc, ok := e.Location.Get(); ok {
		return fmt.Sprintf("%.5f, %.5f", loc.Lat, loc.Lon)
	}
	return mutedStyle.Render("-")
}
