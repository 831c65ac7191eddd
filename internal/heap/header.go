// Package heap implements the per-actor heap and process-wide global arena
// described by the value-layout component of the runtime: every heap object
// is prefixed by a 16-byte GC header, allocation reuses a free list before
// falling back to bump allocation, and the header is never exposed to
// callers (I5: the pointer handed back is always past the header).
package heap

import (
	"unsafe"
)

// HeaderSize is the fixed size, in bytes, of the GC header prepended to
// every object allocated on a per-actor heap (I1, I5). On a 64-bit system
// `flags uint8` followed by `next uint64` naturally pads out to 16 bytes,
// which is the layout this package relies on below.
const HeaderSize = 16

// gcFlags are the bits packed into a header's flags byte.
type gcFlags uint8

const (
	// flagMarked is set during the mark phase of a collection and
	// cleared again during sweep (I3: the mark bit is zero between
	// collections).
	flagMarked gcFlags = 1 << 0

	// flagFree marks a header as currently sitting on the free list
	// rather than the all_objects list. `next` is reused as either link
	// depending on this bit (the "dual use" described in §3.1).
	flagFree gcFlags = 1 << 1
)

// header is the in-memory GC header. size is not part of the spec's
// `{flags, next}` pair but is packed into the header's otherwise-unused
// padding bytes so the free list can do first-fit size matching without a
// side table; the header remains exactly HeaderSize bytes.
type header struct {
	flags gcFlags
	_pad  [3]byte
	size  uint32
	next  uint64 // address of the next header on whichever list this is on; 0 = end of list.
}

func headerAt(addr uintptr) *header {
	return (*header)(unsafe.Pointer(addr)) //nolint:govet
}

// userPtr returns the address handed back to callers for a header at addr:
// the first byte past the header (I5).
func userPtr(headerAddr uintptr) uintptr {
	return headerAddr + HeaderSize
}

// headerFor recovers a header's address from a user pointer previously
// returned by an allocation.
func headerFor(userAddr uintptr) uintptr {
	return userAddr - HeaderSize
}
