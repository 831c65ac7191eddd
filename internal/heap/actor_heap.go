package heap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/snowdamiz/meshcore/internal/logging"
)

// DefaultGCThreshold is the total_allocated level (in bytes) at which
// should_collect begins returning true (§4.A).
const DefaultGCThreshold = 256 * 1024

// Ref is an opaque handle to a live object on a per-actor heap. It is the
// Go-level stand-in for the "pointer past the header" that user code would
// receive across the extern-C boundary (I5).
type Ref struct {
	heap *ActorHeap
	addr uintptr // address of the user data, i.e. headerAddr + HeaderSize.
}

// IsZero reports whether the ref is the zero value (no object).
func (r Ref) IsZero() bool { return r.addr == 0 }

// Addr exposes the raw user-data address. Needed by callers that must hand
// this value across the extern-C ABI boundary (alloc_actor's return value)
// or stash it as a conservative root.
func (r Ref) Addr() uintptr { return r.addr }

// ActorHeap is a single actor's private heap: typed allocation with
// constant-time free-list reuse, a bump-allocated page arena, and support
// for the mark-sweep collector in the sibling gc package (§4.A, §3.1).
type ActorHeap struct {
	mu sync.Mutex

	pages []*page

	// allObjectsHead is the address of the first header on the
	// all_objects intrusive list, or 0 if empty (I2).
	allObjectsHead uintptr

	// freeListHead is the address of the first header on the free_list,
	// or 0 if empty.
	freeListHead uintptr

	totalAllocated uint64
	threshold      uint64

	// inProgress guards against reentrant collection (P3).
	inProgress bool

	log *logging.HandlerSet
}

// NewActorHeap creates an empty per-actor heap with the default GC
// threshold.
func NewActorHeap() *ActorHeap {
	return &ActorHeap{threshold: DefaultGCThreshold}
}

// WithThreshold overrides the default should_collect threshold. Used by
// tests that want to force collection after a handful of allocations (S6).
func (h *ActorHeap) WithThreshold(bytes uint64) *ActorHeap {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.threshold = bytes

	return h
}

// align rounds n up to the nearest multiple of 8, matching the 8-byte-word
// granularity the conservative scanner assumes.
func align(n int) int {
	const wordSize = 8

	return (n + wordSize - 1) &^ (wordSize - 1)
}

// Alloc allocates size bytes for a new object, trying the free list first
// (first-fit; a larger block satisfies a smaller request without
// splitting) and falling back to bump allocation from the current page.
// Alloc never returns an error under normal operation; running out of
// address space in the arena is treated as fatal by the runtime panic path,
// matching the "alloc never returns null" failure model in §4.A.
func (h *ActorHeap) Alloc(size int) Ref {
	aligned := align(size)
	if aligned == 0 {
		aligned = 8
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if addr, ok := h.tryFreeList(aligned); ok {
		return Ref{heap: h, addr: userPtr(addr)}
	}

	addr := h.bumpAlloc(aligned)
	hdr := headerAt(addr)
	hdr.flags = 0
	hdr.size = uint32(aligned)
	hdr.next = uint64(h.allObjectsHead)
	h.allObjectsHead = addr

	h.totalAllocated += uint64(aligned)

	return Ref{heap: h, addr: userPtr(addr)}
}

// tryFreeList walks the free list looking for the first block whose stored
// size is large enough to satisfy the request. On a hit, the block is
// unlinked from free_list, re-linked onto all_objects, and its header
// address is returned.
func (h *ActorHeap) tryFreeList(aligned int) (uintptr, bool) {
	var prev uintptr

	cur := h.freeListHead
	for cur != 0 {
		hdr := headerAt(cur)
		next := uintptr(hdr.next)

		if int(hdr.size) >= aligned {
			// Unlink from free_list.
			if prev == 0 {
				h.freeListHead = next
			} else {
				headerAt(prev).next = uint64(next)
			}

			// Re-link onto all_objects.
			hdr.flags &^= flagFree
			hdr.next = uint64(h.allObjectsHead)
			h.allObjectsHead = cur

			h.totalAllocated += uint64(hdr.size)

			return cur, true
		}

		prev = cur
		cur = next
	}

	return 0, false
}

// bumpAlloc carves `total` bytes (HeaderSize + aligned payload) from the
// current page, allocating a fresh page if necessary.
func (h *ActorHeap) bumpAlloc(alignedPayload int) uintptr {
	total := HeaderSize + alignedPayload

	if len(h.pages) > 0 {
		cur := h.pages[len(h.pages)-1]
		if addr, ok := cur.bumpAlloc(total); ok {
			return addr
		}
	}

	pageSize := DefaultPageSize
	if total > pageSize {
		pageSize = total
	}

	p := newPage(pageSize)
	h.pages = append(h.pages, p)

	addr, ok := p.bumpAlloc(total)
	if !ok {
		// Can't happen: the page was sized to fit `total`.
		panic(fmt.Sprintf("heap: page too small for allocation of %d bytes", total))
	}

	return addr
}

// ShouldCollect reports whether total_allocated has reached the
// configured threshold and a collection is not already underway.
func (h *ActorHeap) ShouldCollect() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return !h.inProgress && h.totalAllocated >= h.threshold
}

// TotalAllocated returns the current live-byte count (I4: equals the sum
// of reachable object sizes after any sweep).
func (h *ActorHeap) TotalAllocated() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.totalAllocated
}

// ObjectBytes returns a byte slice view over an object's user-data region,
// given its Ref. Used both by value-layout code writing payloads (strings,
// list cells, closures) and by the conservative scanner in package gc,
// which treats each 8-byte-aligned word of this slice as a potential
// pointer.
func (h *ActorHeap) ObjectBytes(r Ref) []byte {
	hdrAddr := headerFor(r.addr)
	hdr := headerAt(hdrAddr)
	size := int(hdr.size)

	return unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), size)
}

// findObjectContaining implements the conservative pointer test described
// in §4.D: a quick bounding-box check against the heap's page ranges,
// followed by a linear scan of all_objects for a header whose user-data
// range contains ptr. Returns the header address and true on a hit.
func (h *ActorHeap) findObjectContaining(ptr uintptr) (uintptr, bool) {
	inRange := false
	for _, p := range h.pages {
		if p.contains(ptr) {
			inRange = true
			break
		}
	}
	if !inRange {
		return 0, false
	}

	for cur := h.allObjectsHead; cur != 0; {
		hdr := headerAt(cur)
		dataStart := userPtr(cur)
		dataEnd := dataStart + uintptr(hdr.size)

		if ptr >= dataStart && ptr < dataEnd {
			return cur, true
		}

		cur = uintptr(hdr.next)
	}

	return 0, false
}
