package gc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/meshcore/internal/gc"
	"github.com/snowdamiz/meshcore/internal/heap"
)

func TestTryTriggerIsNoOpBelowThreshold(t *testing.T) {
	h := heap.NewActorHeap().WithThreshold(1024)
	h.Alloc(64)

	stats, ran := gc.TryTrigger(h, func() []uintptr { return nil })
	require.False(t, ran)
	require.Zero(t, stats.Marked)
}

func TestTryTriggerCollectsOnceThresholdReached(t *testing.T) {
	h := heap.NewActorHeap().WithThreshold(64)
	live := h.Alloc(64)

	stats, ran := gc.TryTrigger(h, func() []uintptr { return []uintptr{live.Addr()} })
	require.True(t, ran)
	require.Equal(t, 1, stats.Marked)
	require.Zero(t, stats.Freed)
}

func TestForceCollectsRegardlessOfThreshold(t *testing.T) {
	h := heap.NewActorHeap().WithThreshold(1 << 20)
	h.Alloc(64)

	stats := gc.Force(h, func() []uintptr { return nil })
	require.Zero(t, stats.After)
	require.Equal(t, 1, stats.Freed)
}
