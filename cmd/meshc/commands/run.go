package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowdamiz/meshcore/internal/actorsys"
	"github.com/snowdamiz/meshcore/internal/scheduler"
)

var runTimeoutMs int64

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a local actor runtime and run its main actor",
	Long: `Start a scheduler-backed actor system, spawn the main actor, and wait
for it to exit. Loading a compiled program into the main actor's body is an
external concern (a linker/loader sits between meshc build's LLVM output and
this command); run here demonstrates and exercises the runtime scaffolding
that a loader would drive.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int64Var(
		&runTimeoutMs, "timeout-ms", 5000,
		"Milliseconds to wait for the main actor to exit",
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	sys := actorsys.New(actorsys.Config{
		SchedulerOptions: []scheduler.Option{},
	})
	defer sys.Stop()

	done := make(chan error, 1)
	pid := sys.Spawn(func(ctx *actorsys.Context) (actorsys.Message, error) {
		defer func() { done <- nil }()
		return nil, nil
	})

	fmt.Printf("spawned main actor pid=%v\n", pid)

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("main actor exited with error: %w", err)
		}
		fmt.Println("main actor exited")
		return nil
	case <-time.After(time.Duration(runTimeoutMs) * time.Millisecond):
		return fmt.Errorf("main actor did not exit within %dms", runTimeoutMs)
	}
}
