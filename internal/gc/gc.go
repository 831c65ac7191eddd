// Package gc implements the yield-point triggering policy for the
// mark-sweep collector defined in internal/heap: it decides *when* a
// collection runs (automatically, when should_collect is true at a yield
// point, or explicitly via a forced-collection intrinsic) while the mark
// and sweep mechanics themselves live on heap.ActorHeap, which owns the
// header/page/free-list state a collector must touch (§4.D).
package gc

import (
	"github.com/snowdamiz/meshcore/internal/heap"
	"github.com/snowdamiz/meshcore/internal/logging"
)

var log = logging.NewSubsystemLogger("GC")

// RootProvider supplies the conservative root set for a single process at
// the moment it reaches a yield point: every word that could reference a
// heap object. This is the Go-level stand-in for "every 8-byte-aligned
// word in [stack_top, stack_bottom]" since Go does not allow a safe raw
// scan of a goroutine's own stack. The actor runtime's provider
// (internal/actorsys) returns its mailbox roots, which are always empty,
// so a collection it triggers treats every object on that heap as
// unreachable.
type RootProvider func() []uintptr

// TryTrigger runs try_trigger_gc: if the heap's should_collect reports
// true, a collection runs immediately using the roots from provider.
// Returns the collection stats and true if a collection actually ran.
func TryTrigger(h *heap.ActorHeap, provider RootProvider) (heap.CollectStats, bool) {
	if !h.ShouldCollect() {
		return heap.CollectStats{}, false
	}

	stats := h.Collect(provider())

	log.Debug("collected actor heap",
		"before", stats.Before,
		"after", stats.After,
		"freed", stats.Freed,
		"marked", stats.Marked,
	)

	return stats, true
}

// Force runs an unconditional collection, the behavior backing the
// gc_collect() extern-C intrinsic (§6.1).
func Force(h *heap.ActorHeap, provider RootProvider) heap.CollectStats {
	stats := h.Collect(provider())

	log.Debug("forced collection of actor heap",
		"before", stats.Before,
		"after", stats.After,
		"freed", stats.Freed,
		"marked", stats.Marked,
	)

	return stats
}
