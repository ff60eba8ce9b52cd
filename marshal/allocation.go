package marshal

import (
	"sync"

	wasiexec "github.com/wippyai/wasi-executor"
)

// Allocation is one buffer handed out by the allocator.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// AllocationList records the buffers a materialized value owns so they can
// be freed together.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

// NewAllocationList takes an empty list from the pool.
func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns the list to the pool without freeing anything. The list
// must not be used afterwards.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

// FreeAndRelease frees every recorded buffer, then releases the list.
func (al *AllocationList) FreeAndRelease(allocator wasiexec.Allocator) {
	al.Free(allocator)
	al.Release()
}

// Add records a buffer.
func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
}

// Free frees recorded buffers in reverse order of allocation.
func (al *AllocationList) Free(allocator wasiexec.Allocator) {
	if allocator == nil {
		return
	}
	for i := len(al.allocations) - 1; i >= 0; i-- {
		if a := al.allocations[i]; a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
}

// Reset forgets every recorded buffer.
func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

// Count returns the number of recorded buffers.
func (al *AllocationList) Count() int {
	return len(al.allocations)
}

// Bytes returns the total size of the recorded buffers.
func (al *AllocationList) Bytes() uint64 {
	var n uint64
	for _, a := range al.allocations {
		n += uint64(a.Size)
	}
	return n
}
