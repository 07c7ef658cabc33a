package gvariant

import (
	"reflect"

	"github.com/creachadair/mds/mapset"
)

var (
	// charToType maps a basic type character to the Go type it
	// decodes to.
	charToType = map[byte]reflect.Type{
		elemBool:      reflect.TypeFor[bool](),
		elemByte:      reflect.TypeFor[uint8](),
		elemInt16:     reflect.TypeFor[int16](),
		elemUint16:    reflect.TypeFor[uint16](),
		elemInt32:     reflect.TypeFor[int32](),
		elemUint32:    reflect.TypeFor[uint32](),
		elemInt64:     reflect.TypeFor[int64](),
		elemUint64:    reflect.TypeFor[uint64](),
		elemHandle:    reflect.TypeFor[uint32](),
		elemDouble:    reflect.TypeFor[float64](),
		elemString:    reflect.TypeFor[string](),
		elemPath:      reflect.TypeFor[string](),
		elemSignature: reflect.TypeFor[string](),
	}

	// kindToChar maps the reflect.Kinds of the Go types representable
	// as basic elements to the corresponding type character.
	kindToChar = map[reflect.Kind]byte{
		reflect.Bool:    elemBool,
		reflect.Uint8:   elemByte,
		reflect.Int16:   elemInt16,
		reflect.Uint16:  elemUint16,
		reflect.Int32:   elemInt32,
		reflect.Uint32:  elemUint32,
		reflect.Int64:   elemInt64,
		reflect.Uint64:  elemUint64,
		reflect.Float64: elemDouble,
		reflect.String:  elemString,
	}

	// pairKeyKinds is the set of Go kinds usable as pair keys: the
	// wire format requires pair keys to be basic.
	pairKeyKinds = mapset.New(
		reflect.Bool,
		reflect.Uint8,
		reflect.Int16,
		reflect.Uint16,
		reflect.Int32,
		reflect.Uint32,
		reflect.Int64,
		reflect.Uint64,
		reflect.Float64,
		reflect.String,
	)
)
