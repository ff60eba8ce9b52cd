package types

import (
	"github.com/wippyai/wasi-executor/errors"
)

// PointerSize is the width of a wasm32 address.
const PointerSize = 4

// TypeSize returns the number of bytes a value of type t occupies in place.
// Strings and arrays have no intrinsic size.
func TypeSize(t Type) (uint32, error) {
	switch tt := t.(type) {
	case BuiltinType:
		if s := tt.Prim.Size(); s != 0 {
			return s, nil
		}
		return 0, errors.Unsupported(errors.PhaseValidate, tt.Prim.String())
	case HandleType:
		return 4, nil
	case BitflagsType:
		return tt.Repr.Size(), nil
	case PointerType, ConstPointerType:
		return PointerSize, nil
	case RecordType:
		return tt.Size, nil
	case VariantType:
		return tt.Size, nil
	case StringType:
		return 0, errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Type(tt.String()).Detail("string has no intrinsic size").Build()
	case ArrayType:
		return 0, errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Type(tt.String()).Detail("array has no intrinsic size").Build()
	case nil:
		return 0, errors.InvalidInput(errors.PhaseValidate, "missing type")
	}
	return 0, errors.Unsupported(errors.PhaseValidate, t.Kind().String())
}

// FixedSize reports whether t has an intrinsic size.
func FixedSize(t Type) bool {
	switch t.(type) {
	case StringType, ArrayType, nil:
		return false
	}
	return true
}

// Align returns the natural alignment of t. Layout offsets are supplied by
// the caller, so alignment only matters for fresh top-level allocations.
func Align(t Type) uint32 {
	switch tt := t.(type) {
	case BuiltinType:
		if s := tt.Prim.Size(); s != 0 {
			return s
		}
	case HandleType, PointerType, ConstPointerType:
		return 4
	case BitflagsType:
		return tt.Repr.Size()
	case ArrayType:
		return Align(tt.Item)
	case RecordType:
		a := uint32(1)
		for _, m := range tt.Members {
			if ma := Align(m.Type); ma > a {
				a = ma
			}
		}
		return a
	case VariantType:
		a := tt.TagRepr.Size()
		for _, c := range tt.Cases {
			if c.Type == nil {
				continue
			}
			if ca := Align(c.Type); ca > a {
				a = ca
			}
		}
		if a == 0 {
			return 1
		}
		return a
	}
	return 1
}
