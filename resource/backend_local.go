package resource

import (
	"sort"
	"sync"
)

// Stored pairs an id with its entry.
type Stored struct {
	ID    ID
	Entry Entry
}

// LocalBackend is the in-memory id to entry map behind a Table.
type LocalBackend struct {
	entries map[ID]Entry
	mu      sync.RWMutex
}

// NewLocalBackend creates an empty backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{entries: make(map[ID]Entry, 16)}
}

// Set stores e under id and returns the entry it replaced, if any.
func (b *LocalBackend) Set(id ID, e Entry) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.entries[id]
	b.entries[id] = e
	return prev, ok
}

// Get retrieves the entry stored under id.
func (b *LocalBackend) Get(id ID) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return e, ok
}

// Len returns the number of entries.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Snapshot returns every entry in ascending id order.
func (b *LocalBackend) Snapshot() []Stored {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sorted(b.entries)
}

// Drain removes and returns every entry in ascending id order.
func (b *LocalBackend) Drain() []Stored {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := sorted(b.entries)
	b.entries = make(map[ID]Entry)
	return out
}

func sorted(m map[ID]Entry) []Stored {
	out := make([]Stored, 0, len(m))
	for id, e := range m {
		out = append(out, Stored{ID: id, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
