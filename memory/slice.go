package memory

import (
	"encoding/binary"

	wasiexec "github.com/wippyai/wasi-executor"
)

// Slice is a growable in-process linear memory. It behaves like a wasm32
// memory and backs tests and tools that do not need a runtime.
type Slice struct {
	buf      []byte
	maxPages uint32
}

var _ Linear = (*Slice)(nil)

// NewSlice creates a memory of pages pages that may grow to maxPages.
// A maxPages of 0 means the wasm32 limit.
func NewSlice(pages, maxPages uint32) *Slice {
	if maxPages == 0 {
		maxPages = 65536
	}
	return &Slice{buf: make([]byte, int(pages)*wasiexec.PageSize), maxPages: maxPages}
}

// Bytes exposes the backing buffer.
func (s *Slice) Bytes() []byte { return s.buf }

func (s *Slice) bounds(offset, length uint32) bool {
	return uint64(offset)+uint64(length) <= uint64(len(s.buf))
}

func (s *Slice) Read(offset uint32, length uint32) ([]byte, error) {
	if !s.bounds(offset, length) {
		return nil, readFault(offset, length)
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:])
	return out, nil
}

func (s *Slice) Write(offset uint32, data []byte) error {
	if !s.bounds(offset, uint32(len(data))) {
		return writeFault(offset, uint32(len(data)))
	}
	copy(s.buf[offset:], data)
	return nil
}

func (s *Slice) ReadU8(offset uint32) (uint8, error) {
	if !s.bounds(offset, 1) {
		return 0, readFault(offset, 1)
	}
	return s.buf[offset], nil
}

func (s *Slice) ReadU16(offset uint32) (uint16, error) {
	if !s.bounds(offset, 2) {
		return 0, readFault(offset, 2)
	}
	return binary.LittleEndian.Uint16(s.buf[offset:]), nil
}

func (s *Slice) ReadU32(offset uint32) (uint32, error) {
	if !s.bounds(offset, 4) {
		return 0, readFault(offset, 4)
	}
	return binary.LittleEndian.Uint32(s.buf[offset:]), nil
}

func (s *Slice) ReadU64(offset uint32) (uint64, error) {
	if !s.bounds(offset, 8) {
		return 0, readFault(offset, 8)
	}
	return binary.LittleEndian.Uint64(s.buf[offset:]), nil
}

func (s *Slice) WriteU8(offset uint32, value uint8) error {
	if !s.bounds(offset, 1) {
		return writeFault(offset, 1)
	}
	s.buf[offset] = value
	return nil
}

func (s *Slice) WriteU16(offset uint32, value uint16) error {
	if !s.bounds(offset, 2) {
		return writeFault(offset, 2)
	}
	binary.LittleEndian.PutUint16(s.buf[offset:], value)
	return nil
}

func (s *Slice) WriteU32(offset uint32, value uint32) error {
	if !s.bounds(offset, 4) {
		return writeFault(offset, 4)
	}
	binary.LittleEndian.PutUint32(s.buf[offset:], value)
	return nil
}

func (s *Slice) WriteU64(offset uint32, value uint64) error {
	if !s.bounds(offset, 8) {
		return writeFault(offset, 8)
	}
	binary.LittleEndian.PutUint64(s.buf[offset:], value)
	return nil
}

func (s *Slice) Size() uint32 { return uint32(len(s.buf)) }

func (s *Slice) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(s.buf) / wasiexec.PageSize)
	if uint64(prev)+uint64(deltaPages) > uint64(s.maxPages) {
		return 0, false
	}
	s.buf = append(s.buf, make([]byte, int(deltaPages)*wasiexec.PageSize)...)
	return prev, true
}
