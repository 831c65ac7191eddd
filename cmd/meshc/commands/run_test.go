package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/meshcore/internal/actorsys"
)

// TestRunRunWaitsForMainActorExit exercises the same spawn/wait shape
// runRun uses, without going through cobra.
func TestRunRunWaitsForMainActorExit(t *testing.T) {
	sys := actorsys.New(actorsys.Config{})
	defer sys.Stop()

	done := make(chan error, 1)
	sys.Spawn(func(ctx *actorsys.Context) (actorsys.Message, error) {
		defer func() { done <- nil }()
		return nil, nil
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("main actor never exited")
	}
}
