// Command dispatch is the fleet session reconstruction CLI.
package main

import "github.com/fleetworks-data/dispatch.report/internal/cli"

func main() {
	cli.Execute()
}
