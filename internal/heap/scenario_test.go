package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/meshcore/internal/gc"
	"github.com/snowdamiz/meshcore/internal/heap"
)

// TestBoundedMemoryUnderRepeatedAllocation is scenario S6: an actor that
// allocates ~10 KB per iteration for 200 iterations across 50 message
// rounds (~2 MB total) completes with a 256 KiB heap threshold, and
// resident heap never exceeds 4x that threshold during execution.
func TestBoundedMemoryUnderRepeatedAllocation(t *testing.T) {
	const (
		threshold     = heap.DefaultGCThreshold // 256 KiB
		maxResident   = 4 * threshold
		allocSize     = 10 * 1024
		roundsCount   = 50
		itersPerRound = 4 // 50 * 4 = 200 iterations total
	)

	h := heap.NewActorHeap().WithThreshold(threshold)

	// No allocation from a prior iteration is ever rooted: each round's
	// work is transient scratch space, matching an actor that allocates,
	// uses, and discards within a single message round.
	noRoots := func() []uintptr { return nil }

	for round := 0; round < roundsCount; round++ {
		for i := 0; i < itersPerRound; i++ {
			h.Alloc(allocSize)

			if _, ran := gc.TryTrigger(h, noRoots); ran {
				require.LessOrEqual(t, h.TotalAllocated(), uint64(maxResident),
					"resident heap exceeded 4x threshold after round %d iter %d",
					round, i)
			}
		}
	}

	// A final forced collection with no roots should reclaim everything.
	stats := gc.Force(h, noRoots)
	require.Zero(t, stats.After)
}
