package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/meshcore/internal/api/buildrpc"
)

var checkCmd = &cobra.Command{
	Use:   "check <project-path>",
	Short: "Type-check a project without emitting code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := client.TypeCheck(ctx, &buildrpc.TypeCheckRequest{ProjectPath: args[0]})
	if err != nil {
		return fmt.Errorf("type check: %w", err)
	}

	if outputFormat == "json" {
		return outputJSON(resp)
	}

	if err := renderDiagnostics(resp.Diagnostics); err != nil {
		return err
	}

	fmt.Printf("checked %d module(s)\n", len(resp.ModuleNames))
	return nil
}
