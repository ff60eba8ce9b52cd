package marshal

import (
	"github.com/wippyai/wasi-executor/resource"
	"github.com/wippyai/wasi-executor/types"
)

// Buffer is a typed value laid out in linear memory.
//
// Ptr and Size describe the top-level buffer. Len is the byte length of a
// string or the item count of an array and 0 otherwise. An owned buffer
// records every allocation made while materializing it, nested pointer
// targets included; a borrowed buffer records none.
type Buffer struct {
	Type   types.Type
	allocs *AllocationList
	Ptr    uint32
	Size   uint32
	Len    uint32
}

// Borrow wraps a resource entry. Releasing a borrowed buffer is a no-op.
func Borrow(e resource.Entry) *Buffer {
	b := &Buffer{Type: e.Type, Ptr: e.Ptr, Size: e.Size}
	switch t := e.Type.(type) {
	case types.StringType:
		b.Len = e.Size
	case types.ArrayType:
		if t.ItemSize > 0 {
			b.Len = e.Size / t.ItemSize
		}
	}
	return b
}

// Owned reports whether the buffer owns memory that Release will free.
func (b *Buffer) Owned() bool {
	return b.allocs != nil
}

// Allocations returns the number of buffers owned.
func (b *Buffer) Allocations() int {
	if b.allocs == nil {
		return 0
	}
	return b.allocs.Count()
}

// Entry describes the top-level buffer as a resource table entry.
func (b *Buffer) Entry() resource.Entry {
	return resource.Entry{Type: b.Type, Ptr: b.Ptr, Size: b.Size}
}

// Detach gives up ownership without freeing. It is used when the resource
// table takes over the memory.
func (b *Buffer) Detach() {
	if b.allocs != nil {
		b.allocs.Release()
		b.allocs = nil
	}
}
