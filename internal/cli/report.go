// report.go implements the "dispatch report" command for per-state KPI
// summaries and HTML charts.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/db"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/kpi"
	"github.com/fleetworks-data/dispatch.report/internal/report"
)

var (
	reportVehicles []string
	reportFrom     string
	reportTo       string
	reportOut      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise stored state intervals over a reporting window",
	Long: `Query the stored operational-state intervals for a set of vehicles
and a date window, print per-state totals and percentages, and optionally
write an HTML chart page.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	if len(reportVehicles) == 0 {
		return fmt.Errorf("at least one --vehicle is required")
	}

	window, err := parseWindow(reportFrom, reportTo)
	if err != nil {
		return err
	}

	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	intervals, err := database.QueryIntervals(cmd.Context(), reportVehicles, window.Start, window.End)
	if err != nil {
		return fmt.Errorf("failed to query intervals: %w", err)
	}

	summary := kpi.Summarize(intervals, window)

	fmt.Printf("window %s to %s, %d intervals\n",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"), len(intervals))
	for _, key := range fleet.StateKeys {
		stats := summary.PerKey[key]
		fmt.Printf("  %-20s %8.1f h  %5.1f%%  (%d intervals)\n",
			key, stats.DurationSeconds/3600, summary.Percentage(key), stats.Count)
	}
	fmt.Printf("  %-20s %8.1f h\n", "outside depot", summary.OutsideDepotSeconds/3600)

	if reportOut != "" {
		f, err := os.Create(reportOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		title := fmt.Sprintf("Fleet state report %s to %s",
			window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
		if err := report.RenderKPI(f, title, summary); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Printf("wrote %s\n", reportOut)
	}
	return nil
}

// parseWindow turns --from/--to dates into a [from 00:00, to+1d 00:00) UTC
// window. An empty --to means a single-day window over --from.
func parseWindow(from, to string) (kpi.Window, error) {
	start, err := time.ParseInLocation("2006-01-02", from, time.UTC)
	if err != nil {
		return kpi.Window{}, fmt.Errorf("invalid --from date %q: %w", from, err)
	}
	end := start
	if to != "" {
		end, err = time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			return kpi.Window{}, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
	}
	end = end.Add(24 * time.Hour)
	if !end.After(start) {
		return kpi.Window{}, fmt.Errorf("--to must not be before --from")
	}
	return kpi.Window{Start: start, End: end}, nil
}

func init() {
	reportCmd.Flags().StringSliceVar(&reportVehicles, "vehicle", nil, "Vehicle identifier (repeatable)")
	reportCmd.Flags().StringVar(&reportFrom, "from", time.Now().UTC().Format("2006-01-02"), "Window start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Window end date, inclusive (defaults to --from)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Write an HTML chart page to this path")
}
