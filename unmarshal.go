package gvariant

import (
	"fmt"
	"reflect"

	"github.com/creachadair/mds/value"
)

// Unmarshal decodes the sealed variant v into out, which must be a
// non-nil pointer. The variant's type must match the type string
// derived from out's type as described at [SignatureOf], except that
// any part of the value may be decoded into an empty interface or a
// [Box], which receives a generic representation:
//
//   - basic values decode to their natural Go types.
//   - arrays decode to []any; arrays of pairs decode to map[any]any.
//   - tuples decode to []any.
//   - maybes decode to a value.Maybe[any].
//   - variants decode to their inner value; use a [Box] target to
//     keep the boxing visible.
//
// value.Maybe is only ever produced by that generic path: like
// [SignatureOf], Unmarshal rejects value.Maybe as a typed target,
// since one cannot be constructed through reflection. Decode maybes
// into pointers instead.
//
// Unmarshal rewinds the variant before and after decoding, so a
// variant can be unmarshaled repeatedly.
func Unmarshal(v *Variant, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return typeErr(reflect.TypeOf(out), "unmarshal target must be a non-nil pointer")
	}
	if !v.IsSealed() {
		return ErrUnsealed
	}

	v.Rewind()
	defer v.Rewind()
	return unmarshalValue(v, rv.Elem())
}

func unmarshalValue(v *Variant, val reflect.Value) error {
	t := val.Type()

	switch t {
	case boxType:
		b, err := unmarshalBox(v)
		if err != nil {
			return err
		}
		val.Set(reflect.ValueOf(b))
		return nil
	case anyType:
		a, err := unmarshalAny(v)
		if err != nil {
			return err
		}
		if a == nil {
			val.SetZero()
		} else {
			val.Set(reflect.ValueOf(a))
		}
		return nil
	}

	if isMaybe(t) {
		return typeErr(t, "use a pointer for a maybe value, not value.Maybe")
	}

	if c, ok := kindToChar[t.Kind()]; ok {
		return unmarshalBasic(v, c, val)
	}

	switch t.Kind() {
	case reflect.Pointer:
		if err := v.Enter("m"); err != nil {
			return err
		}
		if v.PeekCount() == 0 {
			val.SetZero()
		} else {
			if val.IsNil() {
				val.Set(reflect.New(t.Elem()))
			}
			if err := unmarshalValue(v, val.Elem()); err != nil {
				return err
			}
		}
		return v.Exit("m")

	case reflect.Slice:
		if err := v.Enter("a"); err != nil {
			return err
		}
		n := v.PeekCount()
		if val.IsNil() || val.Cap() < n {
			val.Set(reflect.MakeSlice(t, n, n))
		} else {
			val.SetLen(n)
		}
		for i := 0; i < n; i++ {
			if err := unmarshalValue(v, val.Index(i)); err != nil {
				return err
			}
		}
		return v.Exit("a")

	case reflect.Array:
		if err := v.Enter("a"); err != nil {
			return err
		}
		n := v.PeekCount()
		if n != t.Len() {
			return typeErr(t, "array has %d elements, wire has %d", t.Len(), n)
		}
		for i := 0; i < n; i++ {
			if err := unmarshalValue(v, val.Index(i)); err != nil {
				return err
			}
		}
		return v.Exit("a")

	case reflect.Map:
		if err := v.Enter("a"); err != nil {
			return err
		}
		n := v.PeekCount()
		val.Set(reflect.MakeMapWithSize(t, n))
		for i := 0; i < n; i++ {
			if err := v.Enter("{"); err != nil {
				return err
			}
			k := reflect.New(t.Key()).Elem()
			e := reflect.New(t.Elem()).Elem()
			if err := unmarshalValue(v, k); err != nil {
				return err
			}
			if err := unmarshalValue(v, e); err != nil {
				return err
			}
			if err := v.Exit("}"); err != nil {
				return err
			}
			val.SetMapIndex(k, e)
		}
		return v.Exit("a")

	case reflect.Struct:
		if err := v.Enter("("); err != nil {
			return err
		}
		for _, f := range structFields(t) {
			if err := unmarshalValue(v, val.FieldByIndex(f.Index)); err != nil {
				return err
			}
		}
		return v.Exit(")")
	}

	return typeErr(t, "no mapping available")
}

func unmarshalBasic(v *Variant, c byte, val reflect.Value) error {
	p := reflect.New(charToType[c])
	if err := v.readOne(c, p.Interface()); err != nil {
		return err
	}
	val.Set(p.Elem().Convert(val.Type()))
	return nil
}

// unmarshalBox decodes the 'v' ahead into a generic Box.
func unmarshalBox(v *Variant) (Box, error) {
	if err := v.Enter("v"); err != nil {
		return Box{}, err
	}
	inner, err := unmarshalAny(v)
	if err != nil {
		return Box{}, err
	}
	if err := v.Exit("v"); err != nil {
		return Box{}, err
	}
	return Box{Value: inner}, nil
}

// unmarshalAny decodes the next value generically, driven by the
// variant's own residual type.
func unmarshalAny(v *Variant) (any, error) {
	typ := v.PeekType()
	if typ == "" {
		return nil, v.mismatch("no value ahead")
	}

	switch c := typ[0]; c {
	case elemVariant:
		b, err := unmarshalBox(v)
		if err != nil {
			return nil, err
		}
		return b.Value, nil

	case elemMaybe:
		if err := v.Enter("m"); err != nil {
			return nil, err
		}
		ret := value.Absent[any]()
		if v.PeekCount() > 0 {
			inner, err := unmarshalAny(v)
			if err != nil {
				return nil, err
			}
			ret = value.Just(inner)
		}
		if err := v.Exit("m"); err != nil {
			return nil, err
		}
		return ret, nil

	case elemArray:
		if len(typ) > 1 && typ[1] == elemPairOpen {
			return unmarshalAnyMap(v)
		}
		if err := v.Enter("a"); err != nil {
			return nil, err
		}
		n := v.PeekCount()
		ret := make([]any, 0, n)
		for i := 0; i < n; i++ {
			e, err := unmarshalAny(v)
			if err != nil {
				return nil, err
			}
			ret = append(ret, e)
		}
		if err := v.Exit("a"); err != nil {
			return nil, err
		}
		return ret, nil

	case elemTupleOpen:
		if err := v.Enter("("); err != nil {
			return nil, err
		}
		var ret []any
		for v.PeekCount() > 0 {
			e, err := unmarshalAny(v)
			if err != nil {
				return nil, err
			}
			ret = append(ret, e)
		}
		if err := v.Exit(")"); err != nil {
			return nil, err
		}
		return ret, nil

	default:
		if !isBasic(c) {
			return nil, v.setPoison(fmt.Errorf("%w: cannot decode %q generically", ErrBadType, c))
		}
		p := reflect.New(charToType[c])
		if err := v.readOne(c, p.Interface()); err != nil {
			return nil, err
		}
		return p.Elem().Interface(), nil
	}
}

func unmarshalAnyMap(v *Variant) (any, error) {
	if err := v.Enter("a"); err != nil {
		return nil, err
	}
	n := v.PeekCount()
	ret := make(map[any]any, n)
	for i := 0; i < n; i++ {
		if err := v.Enter("{"); err != nil {
			return nil, err
		}
		k, err := unmarshalAny(v)
		if err != nil {
			return nil, err
		}
		e, err := unmarshalAny(v)
		if err != nil {
			return nil, err
		}
		if err := v.Exit("}"); err != nil {
			return nil, err
		}
		ret[k] = e
	}
	if err := v.Exit("a"); err != nil {
		return nil, err
	}
	return ret, nil
}
