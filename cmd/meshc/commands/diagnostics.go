package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/meshcore/internal/api/buildrpc"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <project-path>",
	Short: "Build a project and stream its diagnostics back module by module",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	stream, err := client.StreamDiagnostics(ctx, &buildrpc.StreamDiagnosticsRequest{ProjectPath: args[0]})
	if err != nil {
		return fmt.Errorf("stream diagnostics: %w", err)
	}

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream diagnostics: %w", err)
		}
		if chunk.Done {
			return nil
		}

		if outputFormat == "json" {
			if err := outputJSON(chunk); err != nil {
				return err
			}
			continue
		}

		if len(chunk.Diagnostics) == 0 {
			continue
		}
		fmt.Printf("== %s ==\n", chunk.ModuleName)
		if err := renderDiagnostics(chunk.Diagnostics); err != nil {
			return err
		}
	}
}
