package gvariant

import (
	"fmt"
	"math"
)

// MaxSpans is the maximum number of spans backing a single variant.
const MaxSpans = 65535

// A span is one contiguous byte region of a variant's serialized
// form. The owned marker records whether the region was allocated by
// the variant itself; externally supplied regions are referenced, not
// copied, and must outlive the variant.
type span struct {
	data  []byte
	owned bool
}

// A Variant is a single GVariant value, either being assembled (a
// writer, created by [New]) or being picked apart (a reader, created
// by [NewFromSpans] or produced by sealing a writer).
//
// A Variant holds the root type string, the ordered sequence of byte
// spans backing the serialized form, and a level stack tracking the
// cursor through nested containers. Variants are not safe for
// concurrent use.
type Variant struct {
	typ    string
	vecs   []span
	state  *levelChunk
	unused *levelChunk

	aVecs  uint8 // buffers allocated so far, drives growth
	poison error
	sealed bool
}

// New returns a new, empty, unsealed variant of the given type, ready
// for writing.
func New(typ string) (*Variant, error) {
	info, err := ParseType(typ)
	if err != nil {
		return nil, err
	}

	// Carve the initial buffer into a front and a tail region, with
	// empty slots between them for future allocations. Fixed-size
	// values never need framing space, so they get the whole buffer
	// as front.
	size := info.Size
	frontLen := size
	if size == 0 {
		size = 2048
		frontLen = alignUp(size*frontShare/100, 8)
	}
	buf := make([]byte, size)

	v := &Variant{
		typ:   typ,
		state: new(levelChunk),
		vecs: []span{
			{data: buf[:frontLen], owned: true},
			{},
			{},
			{data: buf[frontLen:]},
		},
	}
	v.state.n = 1
	*v.top() = level{
		size:      info.Size,
		enclosing: elemTupleOpen,
		typ:       typ,
	}
	return v, nil
}

// NewFromSpans returns a sealed variant of the given type wrapping
// the supplied spans as its serialized form. The span contents are
// not copied; they must remain accessible and unmodified for the
// lifetime of the variant.
func NewFromSpans(typ string, spans ...[]byte) (*Variant, error) {
	if _, err := ParseType(typ); err != nil {
		return nil, err
	}
	if len(spans) > MaxSpans {
		return nil, ErrTooManySpans
	}

	// If supplied spans overlap, their summed length can exceed the
	// address space even though each is mapped. Reading variants
	// bigger than a machine word is not supported.
	var size uint64
	for _, s := range spans {
		size += uint64(len(s))
		if size > math.MaxInt {
			return nil, ErrTooLarge
		}
	}

	v := &Variant{
		typ:    typ,
		state:  new(levelChunk),
		sealed: true,
		vecs:   make([]span, len(spans)),
	}
	for i, s := range spans {
		v.vecs[i] = span{data: s}
	}
	v.state.n = 1
	levelRoot(v.top(), int(size), typ)
	return v, nil
}

// NewFromBuffer is a convenience wrapper around [NewFromSpans] for a
// single linear buffer.
func NewFromBuffer(typ string, data []byte) (*Variant, error) {
	return NewFromSpans(typ, data)
}

// IsSealed reports whether the variant is sealed. Sealed variants can
// be read but not written, and vice versa. A nil variant is the unit
// value and is always sealed.
func (v *Variant) IsSealed() bool {
	return v == nil || v.sealed
}

// Poison returns the first error that any operation on the variant
// reported, or nil.
//
// Most failures on a variant are fatal for the overall value being
// assembled or parsed, so rather than forcing a check after every
// call, the variant latches the first error. Callers are free to
// ignore intermediate errors and inspect the poison once, at a
// boundary where the variant changes hands. Use of the poison is
// entirely optional; every operation still reports its own error.
func (v *Variant) Poison() error {
	if v == nil {
		return nil
	}
	return v.poison
}

// Spans returns the span sequence backing a sealed variant. The
// returned slices alias the variant's storage and must not be
// modified.
func (v *Variant) Spans() [][]byte {
	if v == nil {
		return nil
	}
	ret := make([][]byte, len(v.vecs))
	for i := range v.vecs {
		ret[i] = v.vecs[i].data
	}
	return ret
}

// Type returns the variant's root type string. A nil variant is the
// unit value "()".
func (v *Variant) Type() string {
	if v == nil {
		return "()"
	}
	return v.typ
}

// setPoison records err as the variant's poison if none is set, and
// returns it.
func (v *Variant) setPoison(err error) error {
	if v.poison == nil {
		v.poison = err
	}
	return err
}

func (v *Variant) mismatch(format string, args ...any) error {
	return v.setPoison(fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...)))
}
