package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/meshcore/internal/api/buildrpc"
)

var buildCmd = &cobra.Command{
	Use:   "build <project-path>",
	Short: "Compile a project",
	Long:  `Run the full build pipeline (check, lower, merge, monomorphize, emit) against a running daemon.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := client.Compile(ctx, &buildrpc.CompileRequest{ProjectPath: args[0]})
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if outputFormat == "json" {
		return outputJSON(resp)
	}

	if err := renderDiagnostics(resp.Diagnostics); err != nil {
		return err
	}

	if !resp.Succeeded {
		return fmt.Errorf("build failed")
	}

	fmt.Println("build succeeded")
	return nil
}
