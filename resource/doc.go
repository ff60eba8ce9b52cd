// Package resource provides the resource table: long-lived buffers in linear
// memory addressed by a client-chosen 64-bit id.
//
// A value produced by one call can be kept under an id and referenced by
// later calls instead of being sent again.
//
// # Table
//
//	table := resource.NewTable(mem, heap)
//
//	// Declare a handle, e.g. a preopened directory descriptor
//	err := table.Declare(1, types.Handle(3))
//
//	// Keep a call result
//	err = table.Put(2, resource.Entry{Ptr: ptr, Size: 4, Type: types.HandleType{}})
//
//	// Look one up
//	entry, err := table.Get(2)
//
// # Lifetime
//
// There is no delete primitive. Replacing an id frees the buffer it held,
// unless the new entry points at the same buffer. Close frees everything.
//
// # Observers
//
// Observers see every lifecycle event:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("resource %d %s at %#x", e.ID, e.Type, e.Entry.Ptr)
//	}))
//
// A table serializes its own mutations, so one table may be shared, but the
// executor creates one per session.
package resource
