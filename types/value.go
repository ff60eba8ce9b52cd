package types

import (
	"bytes"
	"fmt"
)

// Value is a literal matching a Type one-to-one, or a Resource standing in
// for a value already held by the resource table.
type Value interface {
	Kind() Kind
	isValue()
}

// Builtin holds an integer as raw bits. Signed kinds are stored sign-extended
// to 64 bits.
type Builtin struct {
	Prim BuiltinKind
	Bits uint64
}

// String is a byte sequence. It need not be valid UTF-8.
type String []byte

// Bitflags lists member states in declaration order.
type Bitflags []bool

// Handle is an opaque 32-bit identifier.
type Handle uint32

// Array holds the items of an array value.
type Array []Value

// Record holds member values in declaration order.
type Record []Value

// AllocSource decides the size of the buffer a Pointer allocates.
type AllocSource interface {
	isAllocSource()
}

// AllocResource sizes the buffer from the u32 stored in a resource entry.
type AllocResource uint64

// AllocSize sizes the buffer with a literal byte count.
type AllocSize uint32

func (AllocResource) isAllocSource() {}
func (AllocSize) isAllocSource()     {}

// Pointer allocates a fresh buffer and stores its address. Items, when
// present, are written into the buffer at the pointee's stride.
type Pointer struct {
	Alloc AllocSource
	Items []Value
}

// ConstPointer points at a buffer holding Items.
type ConstPointer []Value

// Variant selects a case by index. Payload is nil for payload-less cases.
type Variant struct {
	Case    uint32
	Payload Value
}

// Resource refers to a resource table entry by id.
type Resource uint64

func (Builtin) Kind() Kind      { return KindBuiltin }
func (String) Kind() Kind       { return KindString }
func (Bitflags) Kind() Kind     { return KindBitflags }
func (Handle) Kind() Kind       { return KindHandle }
func (Array) Kind() Kind        { return KindArray }
func (Record) Kind() Kind       { return KindRecord }
func (Pointer) Kind() Kind      { return KindPointer }
func (ConstPointer) Kind() Kind { return KindConstPointer }
func (Variant) Kind() Kind      { return KindVariant }
func (Resource) Kind() Kind     { return KindResource }

func (Builtin) isValue()      {}
func (String) isValue()       {}
func (Bitflags) isValue()     {}
func (Handle) isValue()       {}
func (Array) isValue()        {}
func (Record) isValue()       {}
func (Pointer) isValue()      {}
func (ConstPointer) isValue() {}
func (Variant) isValue()      {}
func (Resource) isValue()     {}

// Int returns the builtin as a signed integer.
func (b Builtin) Int() int64 { return int64(b.Bits) }

// Uint returns the builtin as an unsigned integer.
func (b Builtin) Uint() uint64 { return b.Bits }

func (b Builtin) String() string {
	if b.Prim.Signed() {
		return fmt.Sprintf("%s(%d)", b.Prim, int64(b.Bits))
	}
	return fmt.Sprintf("%s(%d)", b.Prim, b.Bits)
}

// NewU8 through NewS64 build builtin values.
func NewU8(v uint8) Builtin   { return Builtin{Prim: U8, Bits: uint64(v)} }
func NewU16(v uint16) Builtin { return Builtin{Prim: U16, Bits: uint64(v)} }
func NewU32(v uint32) Builtin { return Builtin{Prim: U32, Bits: uint64(v)} }
func NewU64(v uint64) Builtin { return Builtin{Prim: U64, Bits: v} }
func NewS8(v int8) Builtin    { return Builtin{Prim: S8, Bits: uint64(int64(v))} }
func NewS16(v int16) Builtin  { return Builtin{Prim: S16, Bits: uint64(int64(v))} }
func NewS32(v int32) Builtin  { return Builtin{Prim: S32, Bits: uint64(int64(v))} }
func NewS64(v int64) Builtin  { return Builtin{Prim: S64, Bits: uint64(v)} }
func NewChar(v byte) Builtin  { return Builtin{Prim: Char, Bits: uint64(v)} }

// Equal reports whether two values are structurally identical. Empty and nil
// sequences compare equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Builtin:
		bv := b.(Builtin)
		return av.Prim == bv.Prim && av.Bits == bv.Bits
	case String:
		return bytes.Equal(av, b.(String))
	case Bitflags:
		bv := b.(Bitflags)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Handle:
		return av == b.(Handle)
	case Array:
		return equalSeq(av, b.(Array))
	case Record:
		return equalSeq(av, b.(Record))
	case Pointer:
		bv := b.(Pointer)
		return av.Alloc == bv.Alloc && equalSeq(av.Items, bv.Items)
	case ConstPointer:
		return equalSeq(av, b.(ConstPointer))
	case Variant:
		bv := b.(Variant)
		return av.Case == bv.Case && Equal(av.Payload, bv.Payload)
	case Resource:
		return av == b.(Resource)
	}
	return false
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
