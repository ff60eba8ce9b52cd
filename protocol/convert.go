package protocol

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/types"
)

func malformed(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindMalformed).
		Path(path...).Detail(format, args...).Build()
}

func tooDeep(path []string) error {
	return malformed(path, "nesting deeper than %d levels", maxNesting)
}

// TypeFromWire converts a wire type descriptor. Layout invariants are not
// checked here; see types.Validate.
func TypeFromWire(w *Type) (types.Type, error) {
	return typeFromWire(w, nil, 0)
}

func typeFromWire(w *Type, path []string, depth int) (types.Type, error) {
	if w == nil {
		return nil, malformed(path, "missing type")
	}
	if depth > maxNesting {
		return nil, tooDeep(path)
	}

	switch w.Which {
	case TypeBuiltin:
		prim := types.BuiltinKind(w.Builtin)
		if prim.Size() == 0 {
			return nil, malformed(path, "unknown builtin kind %d", w.Builtin)
		}
		return types.BuiltinType{Prim: prim}, nil
	case TypeString:
		return types.StringType{}, nil
	case TypeBitflags:
		return types.BitflagsType{Repr: types.IntRepr(w.Repr), Members: w.Members}, nil
	case TypeHandle:
		return types.HandleType{}, nil
	case TypeArray:
		item, err := typeFromWire(w.Item, errors.PathField(path, "item"), depth+1)
		if err != nil {
			return nil, err
		}
		return types.ArrayType{Item: item, ItemSize: w.ItemSize}, nil
	case TypeRecord:
		members := make([]types.Member, len(w.Fields))
		for i, f := range w.Fields {
			mt, err := typeFromWire(f.Type, errors.PathField(path, fieldName(f.Name, i)), depth+1)
			if err != nil {
				return nil, err
			}
			members[i] = types.Member{Name: f.Name, Type: mt, Offset: f.Offset}
		}
		return types.RecordType{Members: members, Size: w.Size}, nil
	case TypePointer, TypeConstPointer:
		pointee, err := typeFromWire(w.Pointee, errors.PathField(path, "pointee"), depth+1)
		if err != nil {
			return nil, err
		}
		if w.Which == TypePointer {
			return types.PointerType{Pointee: pointee}, nil
		}
		return types.ConstPointerType{Pointee: pointee}, nil
	case TypeVariant:
		cases := make([]types.Case, len(w.Cases))
		for i, c := range w.Cases {
			cases[i] = types.Case{Name: c.Name}
			if c.Type == nil {
				continue
			}
			ct, err := typeFromWire(c.Type, errors.PathField(path, fieldName(c.Name, i)), depth+1)
			if err != nil {
				return nil, err
			}
			cases[i].Type = ct
		}
		return types.VariantType{
			Cases:         cases,
			TagRepr:       types.IntRepr(w.Repr),
			PayloadOffset: w.PayloadOffset,
			Size:          w.Size,
		}, nil
	}
	return nil, malformed(path, "unknown type kind %d", w.Which)
}

func fieldName(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("[%d]", i)
	}
	return name
}

// TypeToWire converts a type descriptor to its wire form.
func TypeToWire(t types.Type) *Type {
	switch t := t.(type) {
	case types.BuiltinType:
		return &Type{Which: TypeBuiltin, Builtin: uint8(t.Prim)}
	case types.StringType:
		return &Type{Which: TypeString}
	case types.BitflagsType:
		return &Type{Which: TypeBitflags, Repr: uint8(t.Repr), Members: t.Members}
	case types.HandleType:
		return &Type{Which: TypeHandle}
	case types.ArrayType:
		return &Type{Which: TypeArray, Item: TypeToWire(t.Item), ItemSize: t.ItemSize}
	case types.RecordType:
		fields := make([]Field, len(t.Members))
		for i, m := range t.Members {
			fields[i] = Field{Name: m.Name, Type: TypeToWire(m.Type), Offset: m.Offset}
		}
		return &Type{Which: TypeRecord, Fields: fields, Size: t.Size}
	case types.PointerType:
		return &Type{Which: TypePointer, Pointee: TypeToWire(t.Pointee)}
	case types.ConstPointerType:
		return &Type{Which: TypeConstPointer, Pointee: TypeToWire(t.Pointee)}
	case types.VariantType:
		cases := make([]Case, len(t.Cases))
		for i, c := range t.Cases {
			cases[i] = Case{Name: c.Name}
			if c.Type != nil {
				cases[i].Type = TypeToWire(c.Type)
			}
		}
		return &Type{
			Which:         TypeVariant,
			Cases:         cases,
			Repr:          uint8(t.TagRepr),
			PayloadOffset: t.PayloadOffset,
			Size:          t.Size,
		}
	}
	return nil
}

// ValueFromWire converts a wire value literal.
func ValueFromWire(w *Value) (types.Value, error) {
	return valueFromWire(w, nil, 0)
}

func valueFromWire(w *Value, path []string, depth int) (types.Value, error) {
	if w == nil {
		return nil, malformed(path, "missing value")
	}
	if depth > maxNesting {
		return nil, tooDeep(path)
	}

	switch w.Which {
	case ValueBuiltin:
		if w.Builtin == nil {
			return nil, malformed(path, "builtin value without payload")
		}
		prim := types.BuiltinKind(w.Builtin.Kind)
		if prim.Size() == 0 {
			return nil, malformed(path, "unknown builtin kind %d", w.Builtin.Kind)
		}
		return types.Builtin{Prim: prim, Bits: w.Builtin.Bits}, nil
	case ValueString:
		return types.String(append([]byte{}, w.Bytes...)), nil
	case ValueBitflags:
		return types.Bitflags(append([]bool{}, w.Flags...)), nil
	case ValueHandle:
		return types.Handle(w.Handle), nil
	case ValueArray, ValueRecord, ValueConstPointer:
		items, err := itemsFromWire(w.Items, path, depth)
		if err != nil {
			return nil, err
		}
		switch w.Which {
		case ValueArray:
			return types.Array(items), nil
		case ValueRecord:
			return types.Record(items), nil
		}
		return types.ConstPointer(items), nil
	case ValuePointer:
		alloc, err := allocFromWire(w.Alloc, errors.PathField(path, "alloc"))
		if err != nil {
			return nil, err
		}
		items, err := itemsFromWire(w.Items, path, depth)
		if err != nil {
			return nil, err
		}
		return types.Pointer{Alloc: alloc, Items: items}, nil
	case ValueVariant:
		v := types.Variant{Case: w.Case}
		if w.Payload != nil {
			p, err := valueFromWire(w.Payload, errors.PathField(path, "payload"), depth+1)
			if err != nil {
				return nil, err
			}
			v.Payload = p
		}
		return v, nil
	case ValueResource:
		return types.Resource(w.Resource), nil
	}
	return nil, malformed(path, "unknown value kind %d", w.Which)
}

func itemsFromWire(ws []Value, path []string, depth int) ([]types.Value, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]types.Value, len(ws))
	for i := range ws {
		v, err := valueFromWire(&ws[i], errors.PathIndex(path, i), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func allocFromWire(w *Alloc, path []string) (types.AllocSource, error) {
	if w == nil {
		return nil, malformed(path, "pointer without allocation source")
	}
	switch w.Which {
	case AllocFromResource:
		return types.AllocResource(w.Resource), nil
	case AllocFromSize:
		return types.AllocSize(w.Size), nil
	}
	return nil, malformed(path, "unknown allocation source %d", w.Which)
}

// ValueToWire converts a value to its wire form.
func ValueToWire(v types.Value) *Value {
	switch v := v.(type) {
	case types.Builtin:
		return &Value{Which: ValueBuiltin, Builtin: &Builtin{Kind: uint8(v.Prim), Bits: v.Bits}}
	case types.String:
		return &Value{Which: ValueString, Bytes: []byte(v)}
	case types.Bitflags:
		return &Value{Which: ValueBitflags, Flags: []bool(v)}
	case types.Handle:
		return &Value{Which: ValueHandle, Handle: uint32(v)}
	case types.Array:
		return &Value{Which: ValueArray, Items: itemsToWire(v)}
	case types.Record:
		return &Value{Which: ValueRecord, Items: itemsToWire(v)}
	case types.ConstPointer:
		return &Value{Which: ValueConstPointer, Items: itemsToWire(v)}
	case types.Pointer:
		w := &Value{Which: ValuePointer, Items: itemsToWire(v.Items)}
		switch a := v.Alloc.(type) {
		case types.AllocResource:
			w.Alloc = &Alloc{Which: AllocFromResource, Resource: uint64(a)}
		case types.AllocSize:
			w.Alloc = &Alloc{Which: AllocFromSize, Size: uint32(a)}
		}
		return w
	case types.Variant:
		w := &Value{Which: ValueVariant, Case: v.Case}
		if v.Payload != nil {
			w.Payload = ValueToWire(v.Payload)
		}
		return w
	case types.Resource:
		return &Value{Which: ValueResource, Resource: uint64(v)}
	}
	return nil
}

func itemsToWire(vs []types.Value) []Value {
	if len(vs) == 0 {
		return nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		if w := ValueToWire(v); w != nil {
			out[i] = *w
		}
	}
	return out
}

// ParamsFromWire converts call parameters.
func ParamsFromWire(ws []ParamSpec) ([]types.ParamSpec, error) {
	out := make([]types.ParamSpec, len(ws))
	for i, w := range ws {
		path := []string{fmt.Sprintf("params[%d]", i)}
		switch w.Which {
		case ParamValue:
			t, err := typeFromWire(w.Type, errors.PathField(path, "type"), 0)
			if err != nil {
				return nil, err
			}
			v, err := valueFromWire(w.Value, errors.PathField(path, "value"), 0)
			if err != nil {
				return nil, err
			}
			out[i] = types.ValueParam{Type: t, Value: v}
		case ParamResource:
			p := types.ResourceParam{ID: w.Resource}
			if w.Type != nil {
				t, err := typeFromWire(w.Type, errors.PathField(path, "type"), 0)
				if err != nil {
					return nil, err
				}
				p.Type = t
			}
			out[i] = p
		default:
			return nil, malformed(path, "unknown parameter kind %d", w.Which)
		}
	}
	return out, nil
}

// ResultsFromWire converts call result specs.
func ResultsFromWire(ws []ResultSpec) ([]types.ResultSpec, error) {
	out := make([]types.ResultSpec, len(ws))
	for i, w := range ws {
		path := []string{fmt.Sprintf("results[%d]", i)}
		t, err := typeFromWire(w.Type, errors.PathField(path, "type"), 0)
		if err != nil {
			return nil, err
		}
		switch w.Which {
		case ResultIgnore:
			out[i] = types.IgnoreResult{Type: t}
		case ResultResource:
			out[i] = types.ResourceResult{ID: w.Resource, Type: t}
		default:
			return nil, malformed(path, "unknown result kind %d", w.Which)
		}
	}
	return out, nil
}

// ParamsToWire converts call parameters to their wire form.
func ParamsToWire(ps []types.ParamSpec) []ParamSpec {
	out := make([]ParamSpec, len(ps))
	for i, p := range ps {
		switch p := p.(type) {
		case types.ValueParam:
			out[i] = ParamSpec{Which: ParamValue, Type: TypeToWire(p.Type), Value: ValueToWire(p.Value)}
		case types.ResourceParam:
			out[i] = ParamSpec{Which: ParamResource, Resource: p.ID}
			if p.Type != nil {
				out[i].Type = TypeToWire(p.Type)
			}
		}
	}
	return out
}

// ResultsToWire converts result specs to their wire form.
func ResultsToWire(rs []types.ResultSpec) []ResultSpec {
	out := make([]ResultSpec, len(rs))
	for i, r := range rs {
		switch r := r.(type) {
		case types.IgnoreResult:
			out[i] = ResultSpec{Which: ResultIgnore, Type: TypeToWire(r.Type)}
		case types.ResourceResult:
			out[i] = ResultSpec{Which: ResultResource, Resource: r.ID, Type: TypeToWire(r.Type)}
		}
	}
	return out
}

// ErrorFromErr builds the wire error reported for a failed request.
func ErrorFromErr(err error) *Error {
	w := &Error{
		Class:  string(errors.ClassOf(err)),
		Kind:   string(errors.KindOf(err)),
		Detail: err.Error(),
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		w.Path = e.Path
	}
	return w
}
