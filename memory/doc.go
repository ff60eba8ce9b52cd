// Package memory provides the linear memory the executor marshals into.
//
// # Memory Wrapper
//
// Wraps a wazero memory export:
//
//	mem := memory.Wrap(shim.ExportedMemory("memory"))
//
// # Slice
//
// An in-process memory with the same bounds and growth rules, used where no
// runtime is needed:
//
//	mem := memory.NewSlice(1, 16)
//
// # Heap
//
// The shim module has no allocator of its own, so buffers are carved out of
// its memory from the host side:
//
//	heap := memory.NewHeap(mem, memory.DefaultHeapBase)
//	ptr, err := heap.Alloc(24, 8)
//	defer heap.Free(ptr, 24, 8)
package memory
