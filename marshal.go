package gvariant

import (
	"fmt"
	"reflect"
	"sort"
)

// Marshal returns a sealed variant holding the serialized form of v,
// using the type mapping described at [SignatureOf].
//
// Marshal traverses the value recursively. Nil pointers marshal as
// the empty maybe; nil slices marshal the same as empty slices. Map
// entries are marshaled in ascending key order, so the output is
// deterministic.
//
// int8, int, uint, uintptr, float32, complex, channel and function
// values cannot be represented and return a [TypeError].
func Marshal(val any) (*Variant, error) {
	sig, err := SignatureOf(val)
	if err != nil {
		return nil, err
	}
	v, err := New(sig)
	if err != nil {
		return nil, err
	}
	if err := marshalValue(v, reflect.ValueOf(val)); err != nil {
		return nil, err
	}
	if err := v.Seal(); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalValue(v *Variant, val reflect.Value) error {
	t := val.Type()

	switch t {
	case boxType:
		return marshalBox(v, val.Interface().(Box).Value)
	case anyType:
		return marshalBox(v, val.Interface())
	}

	if isMaybe(t) {
		return typeErr(t, "use a pointer for a maybe value, not value.Maybe")
	}

	if c, ok := kindToChar[t.Kind()]; ok {
		return v.writeOne(c, basicValue(c, val))
	}

	switch t.Kind() {
	case reflect.Pointer:
		if err := v.Begin("m"); err != nil {
			return err
		}
		if !val.IsNil() {
			if err := marshalValue(v, val.Elem()); err != nil {
				return err
			}
		}
		return v.End("m")

	case reflect.Slice, reflect.Array:
		if err := v.Begin("a"); err != nil {
			return err
		}
		for i := 0; i < val.Len(); i++ {
			if err := marshalValue(v, val.Index(i)); err != nil {
				return err
			}
		}
		return v.End("a")

	case reflect.Map:
		if err := v.Begin("a"); err != nil {
			return err
		}
		keys := val.MapKeys()
		sortKeys(keys)
		for _, k := range keys {
			if err := v.Begin("{"); err != nil {
				return err
			}
			if err := marshalValue(v, k); err != nil {
				return err
			}
			if err := marshalValue(v, val.MapIndex(k)); err != nil {
				return err
			}
			if err := v.End("}"); err != nil {
				return err
			}
		}
		return v.End("a")

	case reflect.Struct:
		if err := v.Begin("("); err != nil {
			return err
		}
		for _, f := range structFields(t) {
			if err := marshalValue(v, val.FieldByIndex(f.Index)); err != nil {
				return err
			}
		}
		return v.End(")")
	}

	return typeErr(t, "no mapping available")
}

// marshalBox writes inner as a 'v', serializing the value together
// with its own type string.
func marshalBox(v *Variant, inner any) error {
	if inner == nil {
		// A box with no value holds the unit type.
		if err := v.Begin("v", "()"); err != nil {
			return err
		}
		if err := v.Write("()"); err != nil {
			return err
		}
		return v.End("v")
	}
	sig, err := SignatureOf(inner)
	if err != nil {
		return err
	}
	if err := v.Begin("v", sig); err != nil {
		return err
	}
	if err := marshalValue(v, reflect.ValueOf(inner)); err != nil {
		return err
	}
	return v.End("v")
}

// basicValue converts val to the exact Go type the writer expects for
// element c, so that named types (type Port uint16) marshal like
// their underlying type.
func basicValue(c byte, val reflect.Value) any {
	switch c {
	case elemBool:
		return val.Bool()
	case elemByte:
		return uint8(val.Uint())
	case elemUint16:
		return uint16(val.Uint())
	case elemUint32:
		return uint32(val.Uint())
	case elemUint64:
		return val.Uint()
	case elemInt16:
		return int16(val.Int())
	case elemInt32:
		return int32(val.Int())
	case elemInt64:
		return val.Int()
	case elemDouble:
		return val.Float()
	case elemString:
		return val.String()
	default:
		panic(fmt.Sprintf("gvariant: no basic mapping for %q", c))
	}
}

// sortKeys orders map keys so serialization is deterministic.
func sortKeys(keys []reflect.Value) {
	if len(keys) == 0 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool { return !keys[i].Bool() && keys[j].Bool() })
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Float64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Float() < keys[j].Float() })
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	}
}
