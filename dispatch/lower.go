package dispatch

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/marshal"
	"github.com/wippyai/wasi-executor/native"
	"github.com/wippyai/wasi-executor/types"
)

// slot is one lowered native argument.
type slot struct {
	kind  api.ValueType
	value uint64
}

func i32Slot(v uint32) slot { return slot{kind: api.ValueTypeI32, value: uint64(v)} }
func i64Slot(v uint64) slot { return slot{kind: api.ValueTypeI64, value: v} }

// lowerParam turns a resolved parameter buffer into native slots.
//
// Scalars are passed by value, loaded from the buffer. Pointers pass the
// address stored in the buffer. Strings and arrays expand to an address and
// a length. Records, and variants with payloads, pass the buffer address.
// A variant without payloads is an enum and passes its tag.
func lowerParam(mem wasiexec.Memory, b *marshal.Buffer, path []string) ([]slot, error) {
	switch t := b.Type.(type) {
	case types.BuiltinType:
		return loadScalar(mem, b.Ptr, t.Prim.Size(), t.Prim.Signed(), path)
	case types.BitflagsType:
		return loadScalar(mem, b.Ptr, t.Repr.Size(), false, path)
	case types.HandleType:
		return loadScalar(mem, b.Ptr, 4, false, path)
	case types.PointerType, types.ConstPointerType:
		addr, err := mem.ReadU32(b.Ptr)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return []slot{i32Slot(addr)}, nil
	case types.StringType, types.ArrayType:
		return []slot{i32Slot(b.Ptr), i32Slot(b.Len)}, nil
	case types.RecordType:
		return []slot{i32Slot(b.Ptr)}, nil
	case types.VariantType:
		if isEnum(t) {
			return loadScalar(mem, b.Ptr, t.TagRepr.Size(), false, path)
		}
		return []slot{i32Slot(b.Ptr)}, nil
	case nil:
		return lowerUntyped(mem, b, path)
	}
	return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
		Path(path...).Detail("cannot lower %s", b.Type.Kind()).Build()
}

// lowerUntyped lowers a resource without a known type by the size of its
// entry. Entries of 1, 2 or 4 bytes load an i32, 8 bytes an i64, and any
// other size passes its address.
func lowerUntyped(mem wasiexec.Memory, b *marshal.Buffer, path []string) ([]slot, error) {
	switch b.Size {
	case 1, 2, 4, 8:
		return loadScalar(mem, b.Ptr, b.Size, false, path)
	}
	return []slot{i32Slot(b.Ptr)}, nil
}

func loadScalar(mem wasiexec.Memory, addr, size uint32, signed bool, path []string) ([]slot, error) {
	var (
		raw uint64
		err error
	)
	switch size {
	case 1:
		var v uint8
		v, err = mem.ReadU8(addr)
		raw = uint64(v)
	case 2:
		var v uint16
		v, err = mem.ReadU16(addr)
		raw = uint64(v)
	case 4:
		var v uint32
		v, err = mem.ReadU32(addr)
		raw = uint64(v)
	case 8:
		raw, err = mem.ReadU64(addr)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return []slot{i64Slot(raw)}, nil
	default:
		return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(path...).Detail("scalar of %d bytes", size).Build()
	}
	if err != nil {
		return nil, errors.Prefix(err, path...)
	}
	if signed && size < 4 {
		shift := 32 - size*8
		raw = uint64(uint32(int32(uint32(raw)<<shift) >> shift))
	}
	return []slot{i32Slot(uint32(raw))}, nil
}

func isEnum(t types.VariantType) bool {
	for _, c := range t.Cases {
		if c.Type != nil {
			return false
		}
	}
	return true
}

// checkSignature verifies the lowered slots against the operation and
// returns the raw argument list.
func checkSignature(op *native.Operation, slots []slot) ([]uint64, error) {
	if len(slots) != len(op.Params) {
		return nil, errors.New(errors.PhaseDispatch, errors.KindSignature).
			Detail("%s takes %d slots, request lowers to %d", op.Name, len(op.Params), len(slots)).
			Value(op.ID).Build()
	}
	args := make([]uint64, len(slots))
	for i, s := range slots {
		if s.kind != op.Params[i] {
			return nil, errors.New(errors.PhaseDispatch, errors.KindSignature).
				Path(fmt.Sprintf("[%d]", i)).
				Detail("%s slot %d is %s, request lowers to %s", op.Name, i,
					api.ValueTypeName(op.Params[i]), api.ValueTypeName(s.kind)).
				Value(op.ID).Build()
		}
		args[i] = s.value
	}
	return args, nil
}
