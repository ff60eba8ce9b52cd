package marshal

import (
	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/resource"
	"github.com/wippyai/wasi-executor/types"
)

// Resources resolves resource ids to their backing memory.
type Resources interface {
	Get(id resource.ID) (resource.Entry, error)
}

// Engine lays typed values out in linear memory and reads them back.
type Engine struct {
	mem       wasiexec.Memory
	alloc     wasiexec.Allocator
	resources Resources
}

// NewEngine creates an engine over mem. Buffers come from alloc and resource
// values are resolved through resources.
func NewEngine(mem wasiexec.Memory, alloc wasiexec.Allocator, resources Resources) *Engine {
	return &Engine{mem: mem, alloc: alloc, resources: resources}
}

// Memory returns the memory the engine works against.
func (e *Engine) Memory() wasiexec.Memory { return e.mem }

// Materialize allocates a buffer for v and writes it according to t.
func (e *Engine) Materialize(t types.Type, v types.Value) (*Buffer, error) {
	size, length, err := e.extent(t, v, nil)
	if err != nil {
		return nil, err
	}

	buf := &Buffer{Type: t, Size: size, Len: length, allocs: NewAllocationList()}
	buf.Ptr, err = e.allocate(size, types.Align(t), buf.allocs)
	if err != nil {
		e.Release(buf)
		return nil, err
	}
	if err := e.writeAt(t, v, buf.Ptr, buf.allocs, nil); err != nil {
		e.Release(buf)
		return nil, err
	}
	return buf, nil
}

// Zeroed allocates a zero-filled buffer for a value of type t. Only types
// with an intrinsic size can be pre-allocated.
func (e *Engine) Zeroed(t types.Type) (*Buffer, error) {
	size, err := types.TypeSize(t)
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Type(t.String()).Detail("result type has no intrinsic size").Cause(err).Build()
	}
	buf := &Buffer{Type: t, Size: size, allocs: NewAllocationList()}
	buf.Ptr, err = e.allocate(size, types.Align(t), buf.allocs)
	if err != nil {
		e.Release(buf)
		return nil, err
	}
	return buf, nil
}

// Release frees every allocation the buffer owns. It is safe to call more
// than once and on borrowed buffers.
func (e *Engine) Release(b *Buffer) {
	if b == nil || b.allocs == nil {
		return
	}
	b.allocs.FreeAndRelease(e.alloc)
	b.allocs = nil
}

// allocate returns a zero-filled buffer and records it in list.
func (e *Engine) allocate(size, align uint32, list *AllocationList) (uint32, error) {
	if align == 0 {
		align = 1
	}
	ptr, err := e.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("allocate %d bytes", size).Cause(err).Build()
	}
	list.Add(ptr, size, align)
	if size > 0 {
		if err := e.mem.Write(ptr, make([]byte, size)); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// extent returns the byte size of v laid out as t, and its length in
// elements for strings and arrays.
func (e *Engine) extent(t types.Type, v types.Value, path []string) (size, length uint32, err error) {
	if r, ok := v.(types.Resource); ok {
		entry, err := e.resolve(r, path)
		if err != nil {
			return 0, 0, err
		}
		return e.resourceExtent(t, entry, path)
	}

	switch tt := t.(type) {
	case types.StringType:
		s, ok := v.(types.String)
		if !ok {
			return 0, 0, mismatch(path, v, t)
		}
		if uint64(len(s)) > maxBuffer {
			return 0, 0, errors.Overflow(errors.PhaseEncode, path, len(s), "u32 length")
		}
		return uint32(len(s)), uint32(len(s)), nil
	case types.ArrayType:
		a, ok := v.(types.Array)
		if !ok {
			return 0, 0, mismatch(path, v, t)
		}
		total := uint64(len(a)) * uint64(tt.ItemSize)
		if total > maxBuffer {
			return 0, 0, errors.Overflow(errors.PhaseEncode, path, total, "u32 length")
		}
		return uint32(total), uint32(len(a)), nil
	}

	size, err = types.TypeSize(t)
	if err != nil {
		return 0, 0, errors.Prefix(err, path...)
	}
	return size, 0, nil
}

func (e *Engine) resourceExtent(t types.Type, entry resource.Entry, path []string) (size, length uint32, err error) {
	switch tt := t.(type) {
	case types.StringType:
		return entry.Size, entry.Size, nil
	case types.ArrayType:
		if tt.ItemSize == 0 {
			return 0, 0, errors.InvalidData(errors.PhaseEncode, path, "array item size is zero")
		}
		return entry.Size, entry.Size / tt.ItemSize, nil
	}
	size, err = types.TypeSize(t)
	if err != nil {
		return 0, 0, errors.Prefix(err, path...)
	}
	return size, 0, nil
}

// maxBuffer bounds a single buffer to what a wasm32 address can span.
const maxBuffer = 1<<32 - 1

func (e *Engine) resolve(r types.Resource, path []string) (resource.Entry, error) {
	if e.resources == nil {
		return resource.Entry{}, errors.Prefix(errors.ResourceNotFound(uint64(r)), path...)
	}
	entry, err := e.resources.Get(uint64(r))
	if err != nil {
		return resource.Entry{}, errors.Prefix(err, path...)
	}
	return entry, nil
}

func mismatch(path []string, v types.Value, t types.Type) error {
	kind := "<nil>"
	if v != nil {
		kind = v.Kind().String()
	}
	return errors.TypeMismatch(errors.PhaseEncode, path, kind, t.String())
}

// writeAt writes v in place at addr. Strings and arrays nested in a record,
// an array or a variant payload are written inline.
func (e *Engine) writeAt(t types.Type, v types.Value, addr uint32, list *AllocationList, path []string) error {
	if r, ok := v.(types.Resource); ok {
		return e.copyResource(t, r, addr, path)
	}

	switch tt := t.(type) {
	case types.BuiltinType:
		b, ok := v.(types.Builtin)
		if !ok || b.Prim != tt.Prim {
			return mismatch(path, v, t)
		}
		if !fits(b) {
			return errors.Overflow(errors.PhaseEncode, path, b.String(), tt.Prim.String())
		}
		return writeUint(e.mem, addr, tt.Prim.Size(), b.Bits)

	case types.StringType:
		s, ok := v.(types.String)
		if !ok {
			return mismatch(path, v, t)
		}
		return e.mem.Write(addr, s)

	case types.BitflagsType:
		flags, ok := v.(types.Bitflags)
		if !ok {
			return mismatch(path, v, t)
		}
		if uint32(len(flags)) > tt.Members {
			return errors.New(errors.PhaseEncode, errors.KindOverflow).
				Path(path...).Type(tt.String()).
				Detail("%d flags given for %d members", len(flags), tt.Members).Build()
		}
		return writeUint(e.mem, addr, tt.Repr.Size(), packFlags(flags))

	case types.HandleType:
		h, ok := v.(types.Handle)
		if !ok {
			return mismatch(path, v, t)
		}
		return e.mem.WriteU32(addr, uint32(h))

	case types.ArrayType:
		items, ok := v.(types.Array)
		if !ok {
			return mismatch(path, v, t)
		}
		for i, item := range items {
			ipath := errors.PathIndex(path, i)
			if err := e.checkInline(tt.Item, item, tt.ItemSize, ipath); err != nil {
				return err
			}
			if err := e.writeAt(tt.Item, item, addr+uint32(i)*tt.ItemSize, list, ipath); err != nil {
				return err
			}
		}
		return nil

	case types.RecordType:
		rec, ok := v.(types.Record)
		if !ok {
			return mismatch(path, v, t)
		}
		if len(rec) != len(tt.Members) {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).Type(tt.String()).
				Detail("record has %d members, value has %d", len(tt.Members), len(rec)).Build()
		}
		for i, m := range tt.Members {
			mpath := errors.PathField(path, m.Name)
			if err := e.checkInline(m.Type, rec[i], room(tt.Size, m.Offset), mpath); err != nil {
				return err
			}
			if err := e.writeAt(m.Type, rec[i], addr+m.Offset, list, mpath); err != nil {
				return err
			}
		}
		return nil

	case types.PointerType:
		p, ok := v.(types.Pointer)
		if !ok {
			return mismatch(path, v, t)
		}
		return e.writePointer(tt, p, addr, list, path)

	case types.ConstPointerType:
		items, ok := v.(types.ConstPointer)
		if !ok {
			return mismatch(path, v, t)
		}
		stride, total, err := e.elements(tt.Pointee, items, path)
		if err != nil {
			return err
		}
		ptr, err := e.allocate(total, types.Align(tt.Pointee), list)
		if err != nil {
			return errors.Prefix(err, path...)
		}
		if err := e.writeElements(tt.Pointee, items, ptr, stride, list, path); err != nil {
			return err
		}
		return e.mem.WriteU32(addr, ptr)

	case types.VariantType:
		vv, ok := v.(types.Variant)
		if !ok {
			return mismatch(path, v, t)
		}
		if int(vv.Case) >= len(tt.Cases) {
			return errors.InvalidDiscriminant(errors.PhaseEncode, path, uint64(vv.Case), len(tt.Cases))
		}
		c := tt.Cases[vv.Case]
		if err := writeUint(e.mem, addr, tt.TagRepr.Size(), uint64(vv.Case)); err != nil {
			return err
		}
		if vv.Payload == nil {
			return nil
		}
		if c.Type == nil {
			return errors.New(errors.PhaseEncode, errors.KindInvalidVariant).
				Path(path...).Type(tt.String()).
				Detail("case %s carries no payload", c.Name).Build()
		}
		cpath := errors.PathField(path, c.Name)
		if err := e.checkInline(c.Type, vv.Payload, room(tt.Size, tt.PayloadOffset), cpath); err != nil {
			return err
		}
		return e.writeAt(c.Type, vv.Payload, addr+tt.PayloadOffset, list, cpath)
	}

	if t == nil {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).Path(path...).Detail("missing type").Build()
	}
	return errors.New(errors.PhaseEncode, errors.KindUnsupported).
		Path(path...).Detail("type kind %s", t.Kind()).Build()
}

// checkInline rejects a variable-size value that would spill past the room
// left for it inside its enclosing buffer.
func (e *Engine) checkInline(t types.Type, v types.Value, limit uint32, path []string) error {
	if _, isRes := v.(types.Resource); !isRes && types.FixedSize(t) {
		return nil
	}
	size, _, err := e.extent(t, v, path)
	if err != nil {
		return err
	}
	if size > limit {
		return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
			Path(path...).Type(t.String()).
			Detail("%d bytes do not fit in the %d bytes available", size, limit).Build()
	}
	return nil
}

func room(size, offset uint32) uint32 {
	if offset >= size {
		return 0
	}
	return size - offset
}

func (e *Engine) writePointer(t types.PointerType, p types.Pointer, addr uint32, list *AllocationList, path []string) error {
	size, err := e.pointerSize(p.Alloc, path)
	if err != nil {
		return err
	}

	var stride uint32
	if len(p.Items) > 0 {
		var total uint32
		stride, total, err = e.elements(t.Pointee, p.Items, path)
		if err != nil {
			return err
		}
		if total > size {
			return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
				Path(path...).Type(t.String()).
				Detail("%d bytes of items exceed the %d byte allocation", total, size).Build()
		}
	}

	ptr, err := e.allocate(size, types.Align(t.Pointee), list)
	if err != nil {
		return errors.Prefix(err, path...)
	}
	if err := e.writeElements(t.Pointee, p.Items, ptr, stride, list, path); err != nil {
		return err
	}
	return e.mem.WriteU32(addr, ptr)
}

// pointerSize resolves the byte size a pointer allocates. A resource source
// holds the size as a u32.
func (e *Engine) pointerSize(src types.AllocSource, path []string) (uint32, error) {
	switch s := src.(type) {
	case types.AllocSize:
		return uint32(s), nil
	case types.AllocResource:
		entry, err := e.resolve(types.Resource(s), path)
		if err != nil {
			return 0, err
		}
		if entry.Size < 4 {
			return 0, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).Value(uint64(s)).
				Detail("resource %d holds %d bytes, need a u32 size", uint64(s), entry.Size).Build()
		}
		n, err := e.mem.ReadU32(entry.Ptr)
		if err != nil {
			return 0, errors.Prefix(err, path...)
		}
		return n, nil
	}
	return 0, errors.New(errors.PhaseEncode, errors.KindInvalidData).
		Path(path...).Detail("pointer needs an allocation size or a size resource").Build()
}

// elements computes the stride and total size of a pointee sequence.
// Variable-size pointees hold a single element.
func (e *Engine) elements(pointee types.Type, items []types.Value, path []string) (stride, total uint32, err error) {
	if types.FixedSize(pointee) {
		stride, err = types.TypeSize(pointee)
		if err != nil {
			return 0, 0, errors.Prefix(err, path...)
		}
		n := uint64(stride) * uint64(len(items))
		if n > maxBuffer {
			return 0, 0, errors.Overflow(errors.PhaseEncode, path, n, "u32 length")
		}
		return stride, uint32(n), nil
	}
	switch len(items) {
	case 0:
		return 0, 0, nil
	case 1:
		size, _, err := e.extent(pointee, items[0], errors.PathIndex(path, 0))
		return size, size, err
	}
	return 0, 0, errors.New(errors.PhaseEncode, errors.KindUnsupported).
		Path(path...).Type(pointee.String()).
		Detail("%d elements of a variable-size pointee", len(items)).Build()
}

func (e *Engine) writeElements(pointee types.Type, items []types.Value, base, stride uint32, list *AllocationList, path []string) error {
	for i, item := range items {
		if err := e.writeAt(pointee, item, base+uint32(i)*stride, list, errors.PathIndex(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// copyResource writes the bytes of a resource entry in place of a literal.
func (e *Engine) copyResource(t types.Type, r types.Resource, addr uint32, path []string) error {
	entry, err := e.resolve(r, path)
	if err != nil {
		return err
	}
	if types.FixedSize(t) {
		slot, err := types.TypeSize(t)
		if err != nil {
			return errors.Prefix(err, path...)
		}
		if entry.Size > slot {
			return errors.New(errors.PhaseEncode, errors.KindOverflow).
				Path(path...).Type(t.String()).Value(uint64(r)).
				Detail("resource %d holds %d bytes, slot has %d", uint64(r), entry.Size, slot).Build()
		}
	}
	data, err := e.mem.Read(entry.Ptr, entry.Size)
	if err != nil {
		return errors.Prefix(err, path...)
	}
	return e.mem.Write(addr, data)
}

func packFlags(flags types.Bitflags) uint64 {
	var bits uint64
	for i, set := range flags {
		if set {
			bits |= 1 << uint(i)
		}
	}
	return bits
}

func fits(b types.Builtin) bool {
	width := b.Prim.Size() * 8
	if width >= 64 {
		return true
	}
	if b.Prim.Signed() {
		v := int64(b.Bits)
		lim := int64(1) << (width - 1)
		return v >= -lim && v < lim
	}
	return b.Bits>>width == 0
}

func writeUint(mem wasiexec.Memory, addr, size uint32, v uint64) error {
	switch size {
	case 1:
		return mem.WriteU8(addr, uint8(v))
	case 2:
		return mem.WriteU16(addr, uint16(v))
	case 4:
		return mem.WriteU32(addr, uint32(v))
	case 8:
		return mem.WriteU64(addr, v)
	}
	return errors.Unsupported(errors.PhaseEncode, "integer width")
}

func readUint(mem wasiexec.Memory, addr, size uint32) (uint64, error) {
	switch size {
	case 1:
		v, err := mem.ReadU8(addr)
		return uint64(v), err
	case 2:
		v, err := mem.ReadU16(addr)
		return uint64(v), err
	case 4:
		v, err := mem.ReadU32(addr)
		return uint64(v), err
	case 8:
		return mem.ReadU64(addr)
	}
	return 0, errors.Unsupported(errors.PhaseReadBack, "integer width")
}
