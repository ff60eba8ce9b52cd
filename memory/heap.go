package memory

import (
	"math"
	"sort"
	"sync"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
)

// DefaultHeapBase keeps the low addresses out of the heap so that no buffer
// is ever handed out at address 0.
const DefaultHeapBase = 16

type block struct {
	start, end uint32
}

// Heap is a first-fit allocator over a growable linear memory. Freed ranges
// are coalesced with their neighbours. The memory is grown by whole pages
// when no free range fits.
type Heap struct {
	mu    sync.Mutex
	mem   wasiexec.MemoryGrower
	free  []block           // sorted by start, non-adjacent
	live  map[uint32]uint32 // ptr -> size
	inUse uint32
}

var _ wasiexec.Allocator = (*Heap)(nil)

// NewHeap manages mem from base up to its current size.
func NewHeap(mem wasiexec.MemoryGrower, base uint32) *Heap {
	if base == 0 {
		base = DefaultHeapBase
	}
	h := &Heap{mem: mem, live: make(map[uint32]uint32)}
	if end := mem.Size(); end > base {
		h.free = []block{{start: base, end: end}}
	}
	return h
}

func alignUp(v, align uint32) uint64 {
	if align <= 1 {
		return uint64(v)
	}
	a := uint64(align)
	return (uint64(v) + a - 1) / a * a
}

// Alloc returns the address of size fresh bytes aligned to align. A zero size
// still yields a distinct address.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("alignment %d is not a power of two", align).Build()
	}
	n := size
	if n == 0 {
		n = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ptr, ok := h.take(n, align); ok {
		return ptr, nil
	}
	if err := h.grow(n, align); err != nil {
		return 0, err
	}
	if ptr, ok := h.take(n, align); ok {
		return ptr, nil
	}
	return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
}

func (h *Heap) take(n, align uint32) (uint32, bool) {
	for i, b := range h.free {
		start := alignUp(b.start, align)
		if start+uint64(n) > uint64(b.end) {
			continue
		}
		ptr := uint32(start)
		end := ptr + n

		var repl []block
		if ptr > b.start {
			repl = append(repl, block{start: b.start, end: ptr})
		}
		if end < b.end {
			repl = append(repl, block{start: end, end: b.end})
		}
		h.free = append(h.free[:i], append(repl, h.free[i+1:]...)...)

		h.live[ptr] = n
		h.inUse += n
		return ptr, true
	}
	return 0, false
}

func (h *Heap) grow(n, align uint32) error {
	need := uint64(n) + uint64(align)
	pages := (need + wasiexec.PageSize - 1) / wasiexec.PageSize
	if pages > 65536 {
		return errors.AllocationFailed(errors.PhaseEncode, n, align)
	}
	oldPages, ok := h.mem.Grow(uint32(pages))
	if !ok {
		return errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("memory limit reached growing by %d pages for %d bytes", pages, n).Build()
	}
	start := uint64(oldPages) * wasiexec.PageSize
	end := start + pages*wasiexec.PageSize
	if end > math.MaxUint32 {
		end = math.MaxUint32
	}
	h.insert(block{start: uint32(start), end: uint32(end)})
	return nil
}

// Free returns a live allocation to the heap. Unknown pointers are ignored so
// that a stale release can never corrupt the free list. size and align are
// accepted for interface compatibility; the recorded size is used.
func (h *Heap) Free(ptr, size, align uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.live[ptr]
	if !ok {
		return
	}
	delete(h.live, ptr)
	h.inUse -= n
	h.insert(block{start: ptr, end: ptr + n})
}

func (h *Heap) insert(nb block) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].start >= nb.start })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = nb

	if i+1 < len(h.free) && h.free[i].end == h.free[i+1].start {
		h.free[i].end = h.free[i+1].end
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].end == h.free[i].start {
		h.free[i-1].end = h.free[i].end
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

// InUse returns the number of bytes currently allocated.
func (h *Heap) InUse() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// Live returns the number of outstanding allocations.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// SizeOf returns the size recorded for a live allocation.
func (h *Heap) SizeOf(ptr uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.live[ptr]
	return n, ok
}
