package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect ingestion run history",
	Long:  `List recorded ingestion runs and show the report of a single run.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent ingestion runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the report of an ingestion run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs")
	runsShowCmd.Flags().BoolVar(&runsJSON, "json", false, "output the report as JSON")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runsServices(cmd *cobra.Command) (*Services, error) {
	settings, err := effectiveSettings(cmd, nil)
	if err != nil {
		return nil, err
	}
	svcs, err := buildServices(cmd, settings, ServiceOptions{})
	if err != nil {
		return nil, err
	}
	if svcs.Runs == nil {
		closeServices(cmd, svcs)
		return nil, errors.New("run history not configured")
	}
	return svcs, nil
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	svcs, err := runsServices(cmd)
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)

	reports, err := svcs.Runs.List(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(reports) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		rows = append(rows, []string{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.IndexName,
			stateLabel(r.State),
			strconv.Itoa(r.ImagesProcessed),
			strconv.Itoa(r.DocumentsLoaded()),
			formatDuration(r.TotalDuration),
		})
	}
	cmd.Print(renderTable([]string{"RUN", "STARTED", "INDEX", "STATE", "IMAGES", "LOADED", "DURATION"}, rows))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	svcs, err := runsServices(cmd)
	if err != nil {
		return err
	}
	defer closeServices(cmd, svcs)

	report, err := svcs.Runs.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("run not found: %s", args[0])
		}
		return fmt.Errorf("failed to get run: %w", err)
	}

	if runsJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(titleStyle.Render("Run " + report.RunID))
	cmd.Printf("  Started: %s\n", report.StartedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("  Index:   %s\n", report.IndexName)
	cmd.Printf("  Model:   %s\n", report.Model)
	cmd.Printf("  State:   %s\n", stateLabel(report.State))
	if report.Error != "" {
		cmd.Printf("  Error:   %s\n", errorStyle.Render(report.Error))
	}
	cmd.Println()
	printIngestReport(cmd, report)
	return nil
}
