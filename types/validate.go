package types

import (
	"sort"

	"github.com/wippyai/wasi-executor/errors"
)

// Validate checks the structural invariants of a type descriptor, recursing
// into every nested type.
func Validate(t Type) error {
	return validate(t, nil)
}

func validate(t Type, path []string) error {
	switch tt := t.(type) {
	case nil:
		return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
			Path(path...).Detail("missing type").Build()
	case BuiltinType:
		if tt.Prim.Size() == 0 {
			return errors.New(errors.PhaseValidate, errors.KindUnsupported).
				Path(path...).Detail("unknown builtin %d", uint8(tt.Prim)).Build()
		}
	case StringType, HandleType:
	case BitflagsType:
		if !tt.Repr.Valid() {
			return invalidRepr(path, tt.Repr)
		}
		if tt.Members > uint32(tt.Repr) {
			return errors.New(errors.PhaseValidate, errors.KindOverflow).
				Path(path...).Type(tt.String()).
				Detail("%d members do not fit in %d bits", tt.Members, uint8(tt.Repr)).Build()
		}
	case ArrayType:
		if tt.ItemSize == 0 {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Path(path...).Type(tt.String()).Detail("item size is zero").Build()
		}
		return validate(tt.Item, errors.PathField(path, "item"))
	case RecordType:
		return validateRecord(tt, path)
	case PointerType:
		return validate(tt.Pointee, errors.PathField(path, "pointee"))
	case ConstPointerType:
		return validate(tt.Pointee, errors.PathField(path, "pointee"))
	case VariantType:
		return validateVariant(tt, path)
	default:
		return errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Path(path...).Detail("type kind %s", t.Kind()).Build()
	}
	return nil
}

func invalidRepr(path []string, r IntRepr) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidData).
		Path(path...).Detail("repr must be 8, 16, 32 or 64 bits, got %d", uint8(r)).Build()
}

type span struct {
	name       string
	start, end uint32
}

func validateRecord(rt RecordType, path []string) error {
	spans := make([]span, 0, len(rt.Members))
	for _, m := range rt.Members {
		mpath := errors.PathField(path, m.Name)
		if err := validate(m.Type, mpath); err != nil {
			return err
		}
		if m.Offset >= rt.Size {
			return errors.New(errors.PhaseValidate, errors.KindOutOfBounds).
				Path(mpath...).Type(rt.String()).
				Detail("offset %d outside record of size %d", m.Offset, rt.Size).Build()
		}
		end := m.Offset + 1
		if size, err := TypeSize(m.Type); err == nil {
			end = m.Offset + size
			if end > rt.Size {
				return errors.New(errors.PhaseValidate, errors.KindOutOfBounds).
					Path(mpath...).Type(rt.String()).
					Detail("member ends at %d past record size %d", end, rt.Size).Build()
			}
		}
		spans = append(spans, span{name: m.Name, start: m.Offset, end: end})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Path(path...).Type(rt.String()).
				Detail("members %s and %s overlap", spans[i-1].name, spans[i].name).Build()
		}
	}
	return nil
}

func validateVariant(vt VariantType, path []string) error {
	if !vt.TagRepr.Valid() {
		return invalidRepr(path, vt.TagRepr)
	}
	if vt.Size < vt.TagRepr.Size() {
		return errors.New(errors.PhaseValidate, errors.KindOutOfBounds).
			Path(path...).Type(vt.String()).
			Detail("size %d smaller than tag", vt.Size).Build()
	}
	for _, c := range vt.Cases {
		if c.Type == nil {
			continue
		}
		cpath := errors.PathField(path, c.Name)
		if err := validate(c.Type, cpath); err != nil {
			return err
		}
		if vt.PayloadOffset >= vt.Size {
			return errors.New(errors.PhaseValidate, errors.KindOutOfBounds).
				Path(cpath...).Type(vt.String()).
				Detail("payload offset %d outside variant of size %d", vt.PayloadOffset, vt.Size).Build()
		}
		if vt.PayloadOffset < vt.TagRepr.Size() {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Path(cpath...).Type(vt.String()).
				Detail("payload offset %d overlaps the tag", vt.PayloadOffset).Build()
		}
		if size, err := TypeSize(c.Type); err == nil && vt.PayloadOffset+size > vt.Size {
			return errors.New(errors.PhaseValidate, errors.KindOutOfBounds).
				Path(cpath...).Type(vt.String()).
				Detail("payload ends at %d past variant size %d", vt.PayloadOffset+size, vt.Size).Build()
		}
	}
	return nil
}
