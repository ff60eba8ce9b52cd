package types

import (
	"fmt"
	"strings"
)

// Kind identifies the case of a Type or Value.
type Kind uint8

const (
	KindBuiltin Kind = iota
	KindString
	KindBitflags
	KindHandle
	KindArray
	KindRecord
	KindPointer
	KindConstPointer
	KindVariant
	KindResource // values only
)

var kindNames = [...]string{
	KindBuiltin:      "builtin",
	KindString:       "string",
	KindBitflags:     "bitflags",
	KindHandle:       "handle",
	KindArray:        "array",
	KindRecord:       "record",
	KindPointer:      "pointer",
	KindConstPointer: "const_pointer",
	KindVariant:      "variant",
	KindResource:     "resource",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// BuiltinKind is a fixed-width integer kind.
type BuiltinKind uint8

const (
	U8 BuiltinKind = iota
	U16
	U32
	U64
	S8
	S16
	S32
	S64
	Char
)

var builtinNames = [...]string{
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	S8: "s8", S16: "s16", S32: "s32", S64: "s64",
	Char: "char",
}

func (b BuiltinKind) String() string {
	if int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return fmt.Sprintf("builtin(%d)", uint8(b))
}

// Size returns the width of the builtin in bytes, or 0 for an unknown kind.
func (b BuiltinKind) Size() uint32 {
	switch b {
	case U8, S8, Char:
		return 1
	case U16, S16:
		return 2
	case U32, S32:
		return 4
	case U64, S64:
		return 8
	}
	return 0
}

// Signed reports whether the builtin is sign-extended when widened.
func (b BuiltinKind) Signed() bool {
	switch b {
	case S8, S16, S32, S64:
		return true
	}
	return false
}

// IntRepr is the integer width backing bitflags and variant tags.
type IntRepr uint8

const (
	Repr8  IntRepr = 8
	Repr16 IntRepr = 16
	Repr32 IntRepr = 32
	Repr64 IntRepr = 64
)

// Valid reports whether r is one of the four permitted widths.
func (r IntRepr) Valid() bool {
	switch r {
	case Repr8, Repr16, Repr32, Repr64:
		return true
	}
	return false
}

// Size returns the width in bytes.
func (r IntRepr) Size() uint32 { return uint32(r) / 8 }

func (r IntRepr) String() string { return fmt.Sprintf("u%d", uint8(r)) }

// Type describes the shape of a value in linear memory.
// The set of implementations is closed.
type Type interface {
	Kind() Kind
	String() string
	isType()
}

// BuiltinType is a fixed-width integer.
type BuiltinType struct {
	Prim BuiltinKind
}

// StringType is a byte sequence with no intrinsic size.
type StringType struct{}

// BitflagsType packs Members booleans into an integer of width Repr.
type BitflagsType struct {
	Repr    IntRepr
	Members uint32
}

// HandleType is a 32-bit opaque identifier.
type HandleType struct{}

// ArrayType is a contiguous sequence of items laid out ItemSize bytes apart.
type ArrayType struct {
	Item     Type
	ItemSize uint32
}

// Member is a named record field at a byte offset.
type Member struct {
	Name   string
	Type   Type
	Offset uint32
}

// RecordType is a fixed-size struct.
type RecordType struct {
	Members []Member
	Size    uint32
}

// PointerType is an owned, writable indirection.
type PointerType struct {
	Pointee Type
}

// ConstPointerType is an indirection to read-only elements.
type ConstPointerType struct {
	Pointee Type
}

// Case is a variant alternative. A nil Type means the case has no payload.
type Case struct {
	Name string
	Type Type
}

// VariantType is a tagged union. The tag sits at offset 0 and the payload of
// the selected case at PayloadOffset.
type VariantType struct {
	Cases         []Case
	TagRepr       IntRepr
	PayloadOffset uint32
	Size          uint32
}

func (BuiltinType) Kind() Kind      { return KindBuiltin }
func (StringType) Kind() Kind       { return KindString }
func (BitflagsType) Kind() Kind     { return KindBitflags }
func (HandleType) Kind() Kind       { return KindHandle }
func (ArrayType) Kind() Kind        { return KindArray }
func (RecordType) Kind() Kind       { return KindRecord }
func (PointerType) Kind() Kind      { return KindPointer }
func (ConstPointerType) Kind() Kind { return KindConstPointer }
func (VariantType) Kind() Kind      { return KindVariant }

func (BuiltinType) isType()      {}
func (StringType) isType()       {}
func (BitflagsType) isType()     {}
func (HandleType) isType()       {}
func (ArrayType) isType()        {}
func (RecordType) isType()       {}
func (PointerType) isType()      {}
func (ConstPointerType) isType() {}
func (VariantType) isType()      {}

func (t BuiltinType) String() string { return t.Prim.String() }
func (StringType) String() string    { return "string" }
func (t BitflagsType) String() string {
	return fmt.Sprintf("bitflags<%s,%d>", t.Repr, t.Members)
}
func (HandleType) String() string { return "handle" }
func (t ArrayType) String() string {
	return fmt.Sprintf("array<%s,%d>", typeName(t.Item), t.ItemSize)
}
func (t RecordType) String() string {
	var b strings.Builder
	b.WriteString("record{")
	for i, m := range t.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s@%d", m.Name, typeName(m.Type), m.Offset)
	}
	fmt.Fprintf(&b, "}[%d]", t.Size)
	return b.String()
}
func (t PointerType) String() string      { return "*" + typeName(t.Pointee) }
func (t ConstPointerType) String() string { return "*const " + typeName(t.Pointee) }
func (t VariantType) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "variant<%s>{", t.TagRepr)
	for i, c := range t.Cases {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(c.Name)
		if c.Type != nil {
			b.WriteByte('(')
			b.WriteString(c.Type.String())
			b.WriteByte(')')
		}
	}
	fmt.Fprintf(&b, "}[%d]", t.Size)
	return b.String()
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Builtin type shorthands.
var (
	TypeU8   Type = BuiltinType{Prim: U8}
	TypeU16  Type = BuiltinType{Prim: U16}
	TypeU32  Type = BuiltinType{Prim: U32}
	TypeU64  Type = BuiltinType{Prim: U64}
	TypeS8   Type = BuiltinType{Prim: S8}
	TypeS16  Type = BuiltinType{Prim: S16}
	TypeS32  Type = BuiltinType{Prim: S32}
	TypeS64  Type = BuiltinType{Prim: S64}
	TypeChar Type = BuiltinType{Prim: Char}
)
