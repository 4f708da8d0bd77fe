// version.go implements the "dispatch version" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dispatch %s (commit %s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
	},
}
