// process.go implements the "dispatch process" command: one pipeline run
// over a fleet root directory.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/db"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/pipeline"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/segment"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

var (
	processRoot        string
	processZones       string
	processOrg         string
	processFullHistory bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the session reconstruction pipeline once",
	Long: `Scan the fleet root for per-vehicle sensor files, reconstruct
sessions, segment them into operational states and persist the resulting
intervals. With --full-history all previously stored intervals for the
configured algorithm version are deleted first and the whole archive is
reprocessed.`,
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processRoot == "" {
		return fmt.Errorf("--root is required (or set FLEET_ROOT)")
	}

	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}

	fs := fsutil.OSFileSystem{}
	zones, err := segment.LoadZones(fs, processZones)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}

	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	p := &pipeline.Pipeline{
		DB:             database,
		FS:             fs,
		Cfg:            cfg,
		Zones:          zones,
		Root:           processRoot,
		OrganizationID: processOrg,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *pipeline.RunSummary
	if processFullHistory {
		summary, err = p.RunFullHistory(ctx)
	} else {
		summary, err = p.Run(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d vehicles, %d sessions, %d files skipped\n",
		summary.RunID, summary.VehiclesProcessed, summary.SessionsMatched, summary.FilesSkipped)
	for _, u := range summary.Unmatched {
		fmt.Printf("  unmatched %s %s: %s\n", u.VehicleID, u.Path, u.Reason)
	}
	for kind, n := range summary.Discards {
		fmt.Printf("  discarded %d %s rows\n", n, kind)
	}
	for _, g := range summary.CoverageGaps {
		fmt.Printf("  coverage gap: %s on %s (%d files, no intervals)\n",
			g.VehicleID, g.Day, g.FileCount)
	}
	for vehicle, msg := range summary.VehicleErrors {
		fmt.Fprintf(os.Stderr, "  vehicle %s failed: %s\n", vehicle, msg)
	}
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processRoot, "root", os.Getenv("FLEET_ROOT"), "Fleet root directory (one subdirectory per vehicle)")
	processCmd.Flags().StringVar(&processZones, "zones", envOr("DISPATCH_ZONES", "config/zones.json"), "Path to the geofence zones JSON file")
	processCmd.Flags().StringVar(&processOrg, "org", os.Getenv("DISPATCH_ORG"), "Organization identifier stamped onto intervals")
	processCmd.Flags().BoolVar(&processFullHistory, "full-history", false, "Delete stored intervals for the current algorithm version and reprocess everything")
}
