// watch.go implements the "dispatch watch" command: the pipeline run
// controller on a fixed schedule.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/db"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/pipeline"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/segment"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
	"github.com/fleetworks-data/dispatch.report/internal/timeutil"
)

var (
	watchRoot     string
	watchZones    string
	watchOrg      string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on a schedule until interrupted",
	Long: `Start the run controller: an immediate pipeline run, then one run
per interval. New sensor files dropped between runs are picked up on the
next cycle. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchRoot == "" {
		return fmt.Errorf("--root is required (or set FLEET_ROOT)")
	}

	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}

	fs := fsutil.OSFileSystem{}
	zones, err := segment.LoadZones(fs, watchZones)
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
		Root:           watchRoot,
		OrganizationID: watchOrg,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := pipeline.NewRunController(p, timeutil.RealClock{}, watchInterval)
	fmt.Printf("watching %s, running every %s\n", watchRoot, watchInterval)
	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&watchRoot, "root", os.Getenv("FLEET_ROOT"), "Fleet root directory (one subdirectory per vehicle)")
	watchCmd.Flags().StringVar(&watchZones, "zones", envOr("DISPATCH_ZONES", "config/zones.json"), "Path to the geofence zones JSON file")
	watchCmd.Flags().StringVar(&watchOrg, "org", os.Getenv("DISPATCH_ORG"), "Organization identifier stamped onto intervals")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Hour, "Delay between scheduled pipeline runs")
}
