package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasi-executor/errors"
)

func TestTypeSize(t *testing.T) {
	tests := []struct {
		typ  Type
		want uint32
	}{
		{TypeU8, 1},
		{TypeChar, 1},
		{TypeS16, 2},
		{TypeU32, 4},
		{TypeS64, 8},
		{HandleType{}, 4},
		{BitflagsType{Repr: Repr16, Members: 3}, 2},
		{PointerType{Pointee: StringType{}}, 4},
		{ConstPointerType{Pointee: TypeU64}, 4},
		{RecordType{Size: 24}, 24},
		{VariantType{TagRepr: Repr8, Size: 12}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, err := TypeSize(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeSize_VariableSize(t *testing.T) {
	for _, typ := range []Type{StringType{}, ArrayType{Item: TypeU8, ItemSize: 1}} {
		_, err := TypeSize(typ)
		require.Error(t, err)
		assert.Equal(t, errors.KindUnsupported, errors.KindOf(err))
		assert.False(t, FixedSize(typ))
	}
}

func TestAlign(t *testing.T) {
	rec := RecordType{
		Members: []Member{
			{Name: "a", Type: TypeU8, Offset: 0},
			{Name: "b", Type: TypeU64, Offset: 8},
		},
		Size: 16,
	}
	assert.Equal(t, uint32(8), Align(rec))
	assert.Equal(t, uint32(4), Align(ArrayType{Item: HandleType{}, ItemSize: 4}))
	assert.Equal(t, uint32(1), Align(StringType{}))
	assert.Equal(t, uint32(2), Align(VariantType{TagRepr: Repr16, Size: 2}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		kind errors.Kind
	}{
		{
			name: "valid record",
			typ: RecordType{Members: []Member{
				{Name: "a", Type: TypeU32, Offset: 0},
				{Name: "b", Type: TypeU64, Offset: 8},
			}, Size: 16},
		},
		{
			name: "overlapping members",
			typ: RecordType{Members: []Member{
				{Name: "a", Type: TypeU64, Offset: 0},
				{Name: "b", Type: TypeU32, Offset: 4},
			}, Size: 16},
			kind: errors.KindInvalidData,
		},
		{
			name: "offset outside record",
			typ:  RecordType{Members: []Member{{Name: "a", Type: TypeU8, Offset: 4}}, Size: 4},
			kind: errors.KindOutOfBounds,
		},
		{
			name: "member past end",
			typ:  RecordType{Members: []Member{{Name: "a", Type: TypeU64, Offset: 4}}, Size: 8},
			kind: errors.KindOutOfBounds,
		},
		{
			name: "bad bitflags repr",
			typ:  BitflagsType{Repr: 12, Members: 2},
			kind: errors.KindInvalidData,
		},
		{
			name: "too many flags",
			typ:  BitflagsType{Repr: Repr8, Members: 9},
			kind: errors.KindOverflow,
		},
		{
			name: "valid variant",
			typ: VariantType{
				Cases:   []Case{{Name: "none"}, {Name: "some", Type: TypeU32}},
				TagRepr: Repr8, PayloadOffset: 4, Size: 8,
			},
		},
		{
			name: "payload offset outside",
			typ: VariantType{
				Cases:   []Case{{Name: "some", Type: TypeU32}},
				TagRepr: Repr8, PayloadOffset: 8, Size: 8,
			},
			kind: errors.KindOutOfBounds,
		},
		{
			name: "payload overlaps tag",
			typ: VariantType{
				Cases:   []Case{{Name: "some", Type: TypeU8}},
				TagRepr: Repr32, PayloadOffset: 2, Size: 8,
			},
			kind: errors.KindInvalidData,
		},
		{
			name: "payload-less variant ignores offset",
			typ: VariantType{
				Cases:   []Case{{Name: "a"}, {Name: "b"}},
				TagRepr: Repr8, PayloadOffset: 100, Size: 1,
			},
		},
		{
			name: "bad tag repr",
			typ:  VariantType{TagRepr: 7, Size: 1},
			kind: errors.KindInvalidData,
		},
		{
			name: "nested invalid",
			typ:  PointerType{Pointee: ArrayType{Item: BitflagsType{Repr: 3}, ItemSize: 1}},
			kind: errors.KindInvalidData,
		},
		{
			name: "zero item size",
			typ:  ArrayType{Item: TypeU8},
			kind: errors.KindInvalidData,
		},
		{
			name: "missing type",
			typ:  nil,
			kind: errors.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.typ)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
			assert.Equal(t, errors.ClassUsage, errors.ClassOf(err))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String(nil), String{}))
	assert.True(t, Equal(Array{}, Array(nil)))
	assert.True(t, Equal(
		Record{NewU32(7), Variant{Case: 1, Payload: NewU8(3)}},
		Record{NewU32(7), Variant{Case: 1, Payload: NewU8(3)}},
	))
	assert.False(t, Equal(NewU32(7), NewS32(7)))
	assert.False(t, Equal(Bitflags{true}, Bitflags{true, false}))
	assert.False(t, Equal(Variant{Case: 1}, Variant{Case: 1, Payload: NewU8(0)}))
	assert.False(t, Equal(Handle(3), Resource(3)))
	assert.True(t, Equal(
		Pointer{Alloc: AllocSize(8), Items: []Value{NewU8(1)}},
		Pointer{Alloc: AllocSize(8), Items: []Value{NewU8(1)}},
	))
	assert.False(t, Equal(Pointer{Alloc: AllocSize(8)}, Pointer{Alloc: AllocResource(8)}))
}

func TestBuiltinSignExtension(t *testing.T) {
	v := NewS8(-1)
	assert.Equal(t, int64(-1), v.Int())
	assert.Equal(t, "s8(-1)", v.String())
	assert.Equal(t, "u16(65535)", NewU16(0xffff).String())
}

func TestTypeString(t *testing.T) {
	v := VariantType{
		Cases:   []Case{{Name: "none"}, {Name: "some", Type: TypeU32}},
		TagRepr: Repr8, PayloadOffset: 4, Size: 8,
	}
	assert.Equal(t, "variant<u8>{none | some(u32)}[8]", v.String())
	assert.Equal(t, "*const array<u8,1>", ConstPointerType{Pointee: ArrayType{Item: TypeU8, ItemSize: 1}}.String())
}

func TestResultType(t *testing.T) {
	var r ResultSpec = ResourceResult{ID: 3, Type: HandleType{}}
	assert.Equal(t, KindHandle, r.ResultType().Kind())
	r = IgnoreResult{Type: TypeU64}
	assert.Equal(t, TypeU64, r.ResultType())
}
