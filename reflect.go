package gvariant

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// A Box wraps a value of any marshalable type. It marshals as the
// recursive type 'v': the inner value is serialized together with its
// own type string, so the receiver can introspect it.
type Box struct {
	Value any
}

var (
	boxType = reflect.TypeFor[Box]()
	anyType = reflect.TypeFor[any]()
)

// TypeError is the error returned when a Go type cannot be
// represented in the GVariant wire format.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("gvariant cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := ""
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}

type sigResult struct {
	sig string
	err error
}

var typeToSig cache[reflect.Type, sigResult]

// SignatureFor returns the type string for the given Go type.
func SignatureFor[T any]() (string, error) {
	return signatureFor(reflect.TypeFor[T](), nil)
}

// SignatureOf returns the type string describing how [Marshal] would
// serialize the given value:
//
//   - bool, uint8, int16, uint16, int32, uint32, int64, uint64,
//     float64 and string map to the corresponding basic type.
//   - slices and arrays map to 'a' of the element type.
//   - maps map to an array of pairs 'a{KV}'; the key type must map to
//     a basic type.
//   - structs map to tuples of their exported fields, in declaration
//     order.
//   - pointers map to maybes of the type pointed to.
//   - [Box] values and the empty interface map to 'v'.
//
// value.Maybe (creachadair/mds) is not a typed mapping for maybes:
// its fields are unexported and its constructors are generic, so the
// codec cannot build one for an arbitrary element type through
// reflection. It is rejected with a [TypeError] rather than silently
// serialized as an empty struct; use a pointer instead. value.Maybe
// appears only on the generic decode side, where [Unmarshal] produces
// a value.Maybe[any] for maybes decoded into an empty interface.
func SignatureOf(v any) (string, error) {
	return signatureFor(reflect.TypeOf(v), nil)
}

func signatureFor(t reflect.Type, stack []reflect.Type) (sig string, err error) {
	if ret, ok := typeToSig.Get(t); ok {
		return ret.sig, ret.err
	}

	if slices.Contains(stack, t) {
		return "", typeErr(t, "recursive type")
	}
	stack = append(stack, t)

	// Note, defer captures the type value before we mess with it
	// below.
	defer func(t reflect.Type) {
		typeToSig.Put(t, sigResult{sig, err})
	}(t)

	if t == nil {
		return "", typeErr(t, "nil interface")
	}

	switch t {
	case boxType, anyType:
		return "v", nil
	}

	if isMaybe(t) {
		return "", typeErr(t, "use a pointer for a maybe value, not value.Maybe")
	}

	if c, ok := kindToChar[t.Kind()]; ok {
		return string(c), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		es, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		return "m" + es, nil
	case reflect.Slice, reflect.Array:
		es, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		return "a" + es, nil
	case reflect.Map:
		k := t.Key()
		if !pairKeyKinds.Has(k.Kind()) {
			return "", typeErr(t, "map key type %s is not basic", k)
		}
		ks, err := signatureFor(k, stack)
		if err != nil {
			return "", err
		}
		vs, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		return "a{" + ks + vs + "}", nil
	case reflect.Struct:
		fields := structFields(t)
		if len(fields) == 0 && t.NumField() > 0 {
			// All fields unexported or excluded: serializing this as
			// the unit type would silently drop the value.
			return "", typeErr(t, "struct has no marshalable fields")
		}
		var s []string
		for _, f := range fields {
			fieldSig, err := signatureFor(f.Type, stack)
			if err != nil {
				return "", err
			}
			s = append(s, fieldSig)
		}
		return "(" + strings.Join(s, "") + ")", nil
	}

	return "", typeErr(t, "no mapping available")
}

// isMaybe reports whether t is an instantiation of the mds
// value.Maybe option type.
func isMaybe(t reflect.Type) bool {
	return t.PkgPath() == "github.com/creachadair/mds/value" &&
		strings.HasPrefix(t.Name(), "Maybe[")
}

// structFields returns the fields of t that participate in
// serialization: exported fields in declaration order, minus those
// tagged `gvariant:"-"`. Embedded structs are flattened, following
// the usual Go visibility rules; fields promoted through an embedded
// pointer are not serialized, since they may not exist at all.
func structFields(t reflect.Type) []reflect.StructField {
	var ret []reflect.StructField
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		if f.Tag.Get("gvariant") == "-" {
			continue
		}
		if throughPointer(t, f.Index) {
			continue
		}
		ret = append(ret, f)
	}
	return ret
}

func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		t = t.Field(i).Type
		if t.Kind() == reflect.Pointer {
			return true
		}
	}
	return false
}
