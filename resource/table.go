package resource

import (
	"sync"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/types"
)

// Table maps resource ids to buffers in linear memory. Entries live until
// they are replaced or the table is closed; a replaced entry's buffer is
// freed unless the new entry reuses it.
type Table struct {
	mem       wasiexec.Memory
	alloc     wasiexec.Allocator
	backend   *LocalBackend
	observers []subscription
	nextObs   int
	obsMu     sync.RWMutex
	mu        sync.Mutex // serializes mutations
	closed    bool
}

type subscription struct {
	o  Observer
	id int
}

// NewTable creates an empty table whose buffers come from alloc.
func NewTable(mem wasiexec.Memory, alloc wasiexec.Allocator) *Table {
	return &Table{
		mem:     mem,
		alloc:   alloc,
		backend: NewLocalBackend(),
	}
}

var errClosed = errors.New(errors.PhaseResource, errors.KindInvalidInput).
	Detail("resource table closed").Build()

// Declare stores a handle value under id. Only handles may be declared.
func (t *Table) Declare(id ID, v types.Value) error {
	h, ok := v.(types.Handle)
	if !ok {
		kind := "<nil>"
		if v != nil {
			kind = v.Kind().String()
		}
		return errors.New(errors.PhaseResource, errors.KindNotHandle).
			Type("handle").Value(id).
			Detail("resource %d: cannot declare %s value", id, kind).Build()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosed
	}

	ptr, err := t.alloc.Alloc(4, 4)
	if err != nil {
		return errors.Wrap(errors.PhaseResource, errors.KindAllocation, err, "declare handle")
	}
	if err := t.mem.WriteU32(ptr, uint32(h)); err != nil {
		t.alloc.Free(ptr, 4, 4)
		return err
	}
	t.store(id, Entry{Type: types.HandleType{}, Ptr: ptr, Size: 4})
	return nil
}

// Put installs e under id, replacing and freeing any previous entry.
func (t *Table) Put(id ID, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosed
	}
	t.store(id, e)
	return nil
}

func (t *Table) store(id ID, e Entry) {
	prev, replaced := t.backend.Set(id, e)
	if !replaced {
		t.notify(Event{Type: EventCreated, ID: id, Entry: e})
		return
	}
	if prev.Ptr != e.Ptr {
		t.free(prev)
	}
	t.notify(Event{Type: EventReplaced, ID: id, Entry: e, Previous: prev})
}

func (t *Table) free(e Entry) {
	align := uint32(1)
	if e.Type != nil {
		align = types.Align(e.Type)
	}
	t.alloc.Free(e.Ptr, e.Size, align)
}

// Get returns the entry stored under id.
func (t *Table) Get(id ID) (Entry, error) {
	e, ok := t.backend.Get(id)
	if !ok {
		return Entry{}, errors.ResourceNotFound(id)
	}
	return e, nil
}

// Bytes returns a copy of the bytes backing id.
func (t *Table) Bytes(id ID) ([]byte, error) {
	e, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	return t.mem.Read(e.Ptr, e.Size)
}

// Entries returns every entry in ascending id order.
func (t *Table) Entries() []Stored {
	return t.backend.Snapshot()
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Close frees every entry and rejects further mutations.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, s := range t.backend.Drain() {
		t.free(s.Entry)
		t.notify(Event{Type: EventReleased, ID: s.ID, Entry: s.Entry})
	}
	return nil
}

// Subscribe adds an observer for lifecycle events. The returned function
// removes it again.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, subscription{id: id, o: o})
	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, s := range t.observers {
		s.o.OnResourceEvent(e)
	}
}
