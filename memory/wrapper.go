package memory

import (
	"github.com/tetratelabs/wazero/api"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
)

// Linear is the memory view the marshaller and allocator work against.
type Linear interface {
	wasiexec.Memory
	wasiexec.MemoryGrower
}

// Wrap adapts a wazero memory export. It returns nil for a nil memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the executor's Memory interface.
type Wrapper struct {
	Mem api.Memory
}

var _ Linear = (*Wrapper)(nil)

func readFault(offset, length uint32) error {
	return errors.New(errors.PhaseReadBack, errors.KindOutOfBounds).
		Detail("memory read out of bounds: offset=%d, length=%d", offset, length).Build()
}

func writeFault(offset, length uint32) error {
	return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
		Detail("memory write out of bounds: offset=%d, length=%d", offset, length).Build()
}

// Read returns a copy of length bytes at offset. wazero hands out views into
// the live buffer which a later grow would invalidate.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, readFault(offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return writeFault(offset, uint32(len(data)))
	}
	return nil
}

func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, readFault(offset, 1)
	}
	return v, nil
}

func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, readFault(offset, 2)
	}
	return v, nil
}

func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, readFault(offset, 4)
	}
	return v, nil
}

func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, readFault(offset, 8)
	}
	return v, nil
}

func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return writeFault(offset, 1)
	}
	return nil
}

func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if !m.Mem.WriteUint16Le(offset, value) {
		return writeFault(offset, 2)
	}
	return nil
}

func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return writeFault(offset, 4)
	}
	return nil
}

func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return writeFault(offset, 8)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Grow adds deltaPages pages, returning the previous page count.
func (m *Wrapper) Grow(deltaPages uint32) (uint32, bool) {
	return m.Mem.Grow(deltaPages)
}
