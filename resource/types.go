package resource

import (
	"github.com/wippyai/wasi-executor/types"
)

// ID names a resource table entry. Ids are chosen by the client.
type ID = uint64

// Entry is the memory backing a resource. Type records the type the buffer
// was produced with; it is nil when unknown.
type Entry struct {
	Type types.Type
	Ptr  uint32
	Size uint32
}

// EventType identifies a resource lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReplaced
	EventReleased
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventReplaced:
		return "replaced"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event represents a resource lifecycle event. Previous is set for
// EventReplaced and holds the entry that was freed.
type Event struct {
	Entry    Entry
	Previous Entry
	ID       ID
	Type     EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
