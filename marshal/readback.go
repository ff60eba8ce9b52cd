package marshal

import (
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/types"
)

// ReadBack reconstructs a value of type t from memory at ptr.
//
// like is an optional shape template, normally the value that was
// materialized at ptr. It supplies what the type alone cannot: string
// lengths, array counts and pointer allocation sizes. Fixed-size types need
// no template; a variable-size type without one is unsupported. A variant
// template that omits its payload reads back without one.
func (e *Engine) ReadBack(t types.Type, ptr uint32, like types.Value) (types.Value, error) {
	return e.readAt(t, ptr, like, nil)
}

// ReadBuffer reads a materialized buffer back using like as the template.
func (e *Engine) ReadBuffer(b *Buffer, like types.Value) (types.Value, error) {
	if like == nil {
		like = e.shapeOf(b.Type, b.Size)
	}
	return e.readAt(b.Type, b.Ptr, like, nil)
}

func noTemplate(t types.Type, path []string) error {
	return errors.New(errors.PhaseReadBack, errors.KindUnsupported).
		Path(path...).Type(t.String()).
		Detail("%s has no intrinsic size and no template was given", t.Kind()).Build()
}

func (e *Engine) readAt(t types.Type, addr uint32, like types.Value, path []string) (types.Value, error) {
	if r, ok := like.(types.Resource); ok {
		// A resource copied into a shape the table entry cannot describe
		// reads back as the reference it came from.
		v, err := e.readAt(t, addr, e.resourceShape(t, r), path)
		if err != nil && errors.KindOf(err) == errors.KindUnsupported {
			return r, nil
		}
		return v, err
	}
	if like != nil && t != nil && like.Kind() != t.Kind() {
		return nil, errors.TypeMismatch(errors.PhaseReadBack, path, like.Kind().String(), t.String())
	}

	switch tt := t.(type) {
	case types.BuiltinType:
		size := tt.Prim.Size()
		raw, err := readUint(e.mem, addr, size)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		if tt.Prim.Signed() {
			shift := 64 - size*8
			raw = uint64(int64(raw<<shift) >> shift)
		}
		return types.Builtin{Prim: tt.Prim, Bits: raw}, nil

	case types.StringType:
		s, ok := like.(types.String)
		if !ok {
			return nil, noTemplate(t, path)
		}
		data, err := e.mem.Read(addr, uint32(len(s)))
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return types.String(data), nil

	case types.BitflagsType:
		raw, err := readUint(e.mem, addr, tt.Repr.Size())
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return unpackFlags(raw, tt.Members), nil

	case types.HandleType:
		h, err := e.mem.ReadU32(addr)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return types.Handle(h), nil

	case types.ArrayType:
		tmpl, ok := like.(types.Array)
		if !ok {
			return nil, noTemplate(t, path)
		}
		out := make(types.Array, len(tmpl))
		for i := range tmpl {
			v, err := e.readAt(tt.Item, addr+uint32(i)*tt.ItemSize, tmpl[i], errors.PathIndex(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case types.RecordType:
		tmpl, _ := like.(types.Record)
		if tmpl != nil && len(tmpl) != len(tt.Members) {
			tmpl = nil
		}
		out := make(types.Record, len(tt.Members))
		for i, m := range tt.Members {
			var mlike types.Value
			if tmpl != nil {
				mlike = tmpl[i]
			}
			v, err := e.readAt(m.Type, addr+m.Offset, mlike, errors.PathField(path, m.Name))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case types.PointerType:
		p, ok := like.(types.Pointer)
		if !ok {
			return nil, noTemplate(t, path)
		}
		return e.readPointer(tt, addr, p, path)

	case types.ConstPointerType:
		tmpl, ok := like.(types.ConstPointer)
		if !ok {
			return nil, noTemplate(t, path)
		}
		target, err := e.mem.ReadU32(addr)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		items, err := e.readElements(tt.Pointee, target, tmpl, path)
		if err != nil {
			return nil, err
		}
		return types.ConstPointer(items), nil

	case types.VariantType:
		tag, err := readUint(e.mem, addr, tt.TagRepr.Size())
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		if tag >= uint64(len(tt.Cases)) {
			return nil, errors.InvalidDiscriminant(errors.PhaseReadBack, path, tag, len(tt.Cases))
		}
		out := types.Variant{Case: uint32(tag)}
		c := tt.Cases[tag]
		if c.Type == nil {
			return out, nil
		}
		var plike types.Value
		if tmpl, ok := like.(types.Variant); ok && uint64(tmpl.Case) == tag {
			if tmpl.Payload == nil {
				// The payload was omitted, so nothing was written there.
				return out, nil
			}
			plike = tmpl.Payload
		}
		out.Payload, err = e.readAt(c.Type, addr+tt.PayloadOffset, plike, errors.PathField(path, c.Name))
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	if t == nil {
		return nil, errors.New(errors.PhaseReadBack, errors.KindInvalidInput).Path(path...).Detail("missing type").Build()
	}
	return nil, errors.New(errors.PhaseReadBack, errors.KindUnsupported).
		Path(path...).Detail("type kind %s", t.Kind()).Build()
}

// readPointer reads the whole allocation a pointer refers to. The element
// count is the allocation size over the pointee stride, so a pointer whose
// items filled its allocation reads back identically.
func (e *Engine) readPointer(t types.PointerType, addr uint32, like types.Pointer, path []string) (types.Value, error) {
	size, err := e.pointerSize(like.Alloc, path)
	if err != nil {
		return nil, errors.Prefix(errors.Wrap(errors.PhaseReadBack, errors.KindInvalidData, err, "pointer size"), path...)
	}
	target, err := e.mem.ReadU32(addr)
	if err != nil {
		return nil, errors.Prefix(err, path...)
	}

	var tmpl []types.Value
	if types.FixedSize(t.Pointee) {
		stride, err := types.TypeSize(t.Pointee)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		n := 0
		if stride > 0 {
			n = int(size / stride)
		}
		tmpl = make([]types.Value, n)
		for i := 0; i < n && i < len(like.Items); i++ {
			tmpl[i] = like.Items[i]
		}
	} else {
		item := e.shapeOf(t.Pointee, size)
		if len(like.Items) == 1 {
			item = like.Items[0]
		}
		if item == nil {
			return nil, noTemplate(t.Pointee, path)
		}
		tmpl = []types.Value{item}
	}

	items, err := e.readElements(t.Pointee, target, tmpl, path)
	if err != nil {
		return nil, err
	}
	return types.Pointer{Alloc: like.Alloc, Items: items}, nil
}

func (e *Engine) readElements(pointee types.Type, base uint32, tmpl []types.Value, path []string) ([]types.Value, error) {
	if len(tmpl) == 0 {
		return nil, nil
	}
	var stride uint32
	if types.FixedSize(pointee) {
		var err error
		if stride, err = types.TypeSize(pointee); err != nil {
			return nil, errors.Prefix(err, path...)
		}
	} else if len(tmpl) > 1 {
		return nil, errors.New(errors.PhaseReadBack, errors.KindUnsupported).
			Path(path...).Type(pointee.String()).
			Detail("%d elements of a variable-size pointee", len(tmpl)).Build()
	}

	out := make([]types.Value, len(tmpl))
	for i := range tmpl {
		v, err := e.readAt(pointee, base+uint32(i)*stride, tmpl[i], errors.PathIndex(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// shapeOf builds a template for a variable-size type occupying size bytes.
// It returns nil where size alone cannot decide the shape.
func (e *Engine) shapeOf(t types.Type, size uint32) types.Value {
	switch tt := t.(type) {
	case types.StringType:
		return make(types.String, size)
	case types.ArrayType:
		if tt.ItemSize == 0 {
			return nil
		}
		return make(types.Array, size/tt.ItemSize)
	}
	return nil
}

// resourceShape turns a resource template into a shape template using the
// size of the entry. Fixed-size types need none.
func (e *Engine) resourceShape(t types.Type, r types.Resource) types.Value {
	if e.resources == nil {
		return nil
	}
	entry, err := e.resources.Get(uint64(r))
	if err != nil {
		return nil
	}
	return e.shapeOf(t, entry.Size)
}

func unpackFlags(raw uint64, members uint32) types.Bitflags {
	out := make(types.Bitflags, members)
	for i := range out {
		out[i] = (raw>>uint(i))&1 == 1
	}
	return out
}
