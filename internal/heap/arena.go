package heap

import "sync"

// GlobalArena is the process-wide arena backing allocations made outside
// any actor context (driver-time initialization, main-thread bootstrap).
// Objects allocated here carry no GC header (I1) and are never collected;
// the arena simply grows for the lifetime of the process.
type GlobalArena struct {
	mu    sync.Mutex
	pages []*page
}

// NewGlobalArena creates an empty global arena.
func NewGlobalArena() *GlobalArena {
	return &GlobalArena{}
}

// Alloc bump-allocates size bytes from the arena with no header. The
// returned address is never reclaimed.
func (a *GlobalArena) Alloc(size int) uintptr {
	aligned := align(size)
	if aligned == 0 {
		aligned = 8
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pages) > 0 {
		cur := a.pages[len(a.pages)-1]
		if addr, ok := cur.bumpAlloc(aligned); ok {
			return addr
		}
	}

	pageSize := DefaultPageSize
	if aligned > pageSize {
		pageSize = aligned
	}

	p := newPage(pageSize)
	a.pages = append(a.pages, p)

	addr, _ := p.bumpAlloc(aligned)

	return addr
}
