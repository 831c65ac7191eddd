// Package commands implements the meshc CLI: a cobra command tree that
// talks to a running devserver/build daemon over gRPC, grounded on the
// teacher's cmd/substrate/commands package.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// daemonAddr is the address of the meshc build daemon.
	daemonAddr string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "meshc",
	Short: "Mesh compiler and runtime driver",
	Long: `meshc drives the Mesh compiler pipeline and actor runtime.

Use "meshc build" and "meshc check" against a running daemon to compile or
type-check a project, "meshc diagnostics" to run a build and print its
diagnostics module by module, and "meshc run" to start a local actor runtime.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&daemonAddr, "daemon-addr", "localhost:10109",
		"Address of the meshc build daemon",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(runCmd)
}
