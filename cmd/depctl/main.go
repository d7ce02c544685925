// Command depctl is the CLI surface for the resolve/lock/sync pipeline
// (spec.md §6), following the teacher's own `registry` binary in
// structure: a spf13/cobra root command, a package-level configureLogging
// step driven by environment variables rather than a config file, and
// typed component errors translated to a single human-readable message at
// the outermost layer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// RootCmd is the root of the depctl command tree.
var RootCmd = &cobra.Command{
	Use:   "depctl",
	Short: "depctl manages a project's Python-like dependency environment",
	Long:  "depctl resolves, locks and synchronizes a project's dependency environment against a package index.",
}

func init() {
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(cleanCmd)
}
