// migrate.go implements the "dispatch migrate" command group wrapping the
// embedded schema migrations.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateDB(func(database *db.DB) error {
			if err := database.MigrateUp(); err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			printMigrateVersion(database)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back one migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateDB(func(database *db.DB) error {
			if err := database.MigrateDown(); err != nil {
				return fmt.Errorf("migration down failed: %w", err)
			}
			printMigrateVersion(database)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateDB(func(database *db.DB) error {
			version, dirty, err := database.MigrateVersion()
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}
			fmt.Printf("version: %d\ndirty: %v\n", version, dirty)
			if dirty {
				fmt.Println("a migration failed mid-execution; inspect the database, then use 'migrate force' to reset the recorded version")
			}
			return nil
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force the recorded schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrateDB(func(database *db.DB) error {
			if err := database.MigrateForce(version); err != nil {
				return fmt.Errorf("migration force failed: %w", err)
			}
			printMigrateVersion(database)
			return nil
		})
	},
}

func withMigrateDB(fn func(*db.DB) error) error {
	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	return fn(database)
}

func printMigrateVersion(database *db.DB) {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		fmt.Printf("current version unknown: %v\n", err)
		return
	}
	fmt.Printf("current version: %d (dirty: %v)\n", version, dirty)
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateForceCmd)
}
