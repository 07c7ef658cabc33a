package gvariant

import (
	"encoding/binary"
	"fmt"
	"math"
)

// appendElem makes room for the next element at the current level,
// which must match the given type character. nFront is the number of
// front bytes to reserve for the element's own data; it must be the
// element's fixed size, or the caller's chosen length for
// dynamic-sized elements.
//
// If the element is dynamic-sized and lives in a container that
// frames its children, an 8-byte framing entry is reserved at the
// tail and seeded with the element's end offset; entries are
// re-encoded to the container's final word size when it closes. The
// last child of a tuple or pair is never framed: its end is the
// container's end.
func (v *Variant) appendElem(element byte, nFront int) (info TypeInfo, front []byte, framed bool, err error) {
	l := v.top()

	if len(l.typ) == 0 || l.typ[0] != element {
		return TypeInfo{}, nil, false, v.mismatch("writing %q, next type is %q", element, l.typ)
	}

	info = mustNextType(l.typ)

	switch l.enclosing {
	case elemTupleOpen, elemPairOpen:
		if len(info.Type) < len(l.typ) {
			framed = info.Size == 0
		}
	case elemArray:
		framed = info.Size == 0
	}

	tailN := 0
	if framed {
		tailN = 8
	}
	front, tail, err := v.reserve(info.Alignment, nFront, tailN)
	if err != nil {
		return TypeInfo{}, nil, false, err
	}

	if framed {
		l.index++
		binary.LittleEndian.PutUint64(tail, uint64(l.offset))
	}

	switch l.enclosing {
	case elemArray:
		// Arrays replay the element type.
	case elemMaybe:
		// A maybe with a dynamic-sized child marks its presence with
		// a trailing NUL byte, appended when the maybe closes.
		if info.Size == 0 {
			l.index++
		}
		l.typ = l.typ[len(info.Type):]
	default:
		l.typ = l.typ[len(info.Type):]
	}
	return info, front, framed, nil
}

// writeOne serializes one basic element.
func (v *Variant) writeOne(basic byte, arg any) error {
	var (
		buf [8]byte
		n   int
		str string
	)

	switch basic {
	case elemBool:
		b, ok := arg.(bool)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		if b {
			buf[0] = 1
		}
		n = 1
	case elemByte:
		y, ok := arg.(byte)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		buf[0] = y
		n = 1
	case elemInt16:
		x, ok := arg.(int16)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint16(buf[:], uint16(x))
		n = 2
	case elemUint16:
		x, ok := arg.(uint16)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint16(buf[:], x)
		n = 2
	case elemInt32:
		x, ok := arg.(int32)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint32(buf[:], uint32(x))
		n = 4
	case elemUint32, elemHandle:
		x, ok := arg.(uint32)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint32(buf[:], x)
		n = 4
	case elemInt64:
		x, ok := arg.(int64)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(x))
		n = 8
	case elemUint64:
		x, ok := arg.(uint64)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint64(buf[:], x)
		n = 8
	case elemDouble:
		x, ok := arg.(float64)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		n = 8
	case elemString, elemPath, elemSignature:
		s, ok := arg.(string)
		if !ok {
			return v.mismatch("writing %q from %T", basic, arg)
		}
		str = s
		n = len(s) + 1 // mandatory NUL terminator
	default:
		panic("gvariant: write of non-basic element")
	}

	_, front, _, err := v.appendElem(basic, n)
	if err != nil {
		return err
	}
	switch basic {
	case elemString, elemPath, elemSignature:
		copy(front, str)
		front[n-1] = 0
	default:
		copy(front, buf[:n])
	}
	return nil
}

// beginOne opens a new container of the given kind at the cursor. For
// 'v', vtype is the inner type; it is emitted, preceded by a NUL
// byte, when the container closes.
func (v *Variant) beginOne(container byte, vtype string) error {
	if container == elemVariant {
		if _, err := ParseType(vtype); err != nil {
			return v.setPoison(err)
		}
	}

	info, _, _, err := v.appendElem(container, 0)
	if err != nil {
		return err
	}

	l := v.top()
	next := v.pushLevel()
	*next = level{
		size:      info.Size,
		iTail:     l.iTail,
		vTail:     l.vTail,
		enclosing: container,
		vFront:    l.vFront,
		iFront:    l.iFront,
	}

	switch container {
	case elemVariant:
		next.typ = vtype
		next.vtype = vtype
		next.index = len(vtype)
	case elemMaybe, elemArray:
		next.typ = info.Type[1:]
	case elemTupleOpen, elemPairOpen:
		next.typ = info.Type[1 : len(info.Type)-1]
	default:
		panic("gvariant: begin of non-container")
	}
	return nil
}

// endOne closes the current container: it works out the final word
// size, compacts the accumulated 8-byte framing entries into the
// front at that word size, advances the parent past the completed
// child, and records the child's end offset in the parent's framing
// entry if the child is dynamic-sized.
func (v *Variant) endOne() error {
	if v.onRootLevel() {
		return v.mismatch("end at the root level")
	}

	prev := v.top()

	// Fixed-size containers are padded with zeros up to their full
	// size; this also produces the single zero byte of the unit type.
	if prev.size > 0 && prev.offset < prev.size {
		pad, _, err := v.reserve(0, prev.size-prev.offset, 0)
		if err != nil {
			return err
		}
		clear(pad)
	}

	wz := wordSize(prev.offset, prev.index)

	var n int
	switch prev.enclosing {
	case elemVariant:
		n = prev.index + 1
	case elemMaybe:
		if prev.index > 0 {
			n = 1
		}
	case elemArray, elemTupleOpen, elemPairOpen:
		n = prev.index * (1 << wz)
	default:
		panic("gvariant: end of non-container")
	}

	front, _, err := v.reserve(0, n, 0)
	if err != nil {
		return err
	}

	v.popLevel()
	l := v.top()

	switch prev.enclosing {
	case elemVariant:
		front[0] = 0
		copy(front[1:], prev.vtype)

	case elemMaybe:
		if prev.index > 0 {
			front[0] = 0
		}

	case elemArray, elemTupleOpen, elemPairOpen:
		// The tail holds one 8-byte entry per framed child, in the
		// order they were written. Arrays store framing offsets in
		// that order, tuples and pairs in reverse, so the copy walks
		// the destination accordingly while draining the tail
		// newest-first.
		i, step := 0, 1
		if prev.enclosing == elemArray {
			i, step = prev.index-1, -1
		}
		tv := len(v.vecs) - prev.vTail - 1
		rem := prev.iTail
		for k := prev.index; k > 0; k-- {
			for rem < 8 {
				tv++
				rem = len(v.vecs[tv].data)
			}
			rem -= 8
			frame := int(binary.LittleEndian.Uint64(v.vecs[tv].data[rem:]))
			wordStore(front[i*(1<<wz):], wz, frame)
			i += step
		}
	}

	// The parent was aligned when the container was opened, so the
	// child's offset is exactly the distance between the two fronts.
	l.iFront += prev.offset
	l.offset += prev.offset

	if prev.size == 0 {
		framed := false
		switch l.enclosing {
		case elemTupleOpen, elemPairOpen:
			framed = len(l.typ) > 0
		case elemArray:
			framed = true
		}
		if framed {
			tv := len(v.vecs) - l.vTail - 1
			binary.LittleEndian.PutUint64(v.vecs[tv].data[l.iTail-8:], uint64(l.offset))
		}
	}
	return nil
}

func (v *Variant) endTry(container byte) error {
	if v.top().enclosing != container {
		return v.mismatch("ending %q, enclosing container is %q", container, v.top().enclosing)
	}
	return v.endOne()
}

// Begin opens the containers listed in containers ('v', 'm', 'a',
// '(', '{'), moving the cursor into them for subsequent writes. Every
// 'v' consumes one entry of vtypes as its inner type. An empty
// containers string begins the single next container ahead.
func (v *Variant) Begin(containers string, vtypes ...string) error {
	if v == nil {
		return fmt.Errorf("%w: cannot write to the unit variant", ErrTypeMismatch)
	}
	if v.sealed {
		return v.setPoison(ErrSealed)
	}

	if containers == "" {
		l := v.top()
		if len(l.typ) == 0 {
			return v.mismatch("no container ahead")
		}
		containers = l.typ[:1]
	}

	vi := 0
	for i := 0; i < len(containers); i++ {
		c := containers[i]
		var vtype string
		if c == elemVariant {
			if vi >= len(vtypes) {
				return v.mismatch("missing inner type for variant %d", vi+1)
			}
			vtype = vtypes[vi]
			vi++
		}
		switch c {
		case elemVariant, elemMaybe, elemArray, elemTupleOpen, elemPairOpen:
			if err := v.beginOne(c, vtype); err != nil {
				return err
			}
		default:
			return v.setPoison(fmt.Errorf("%w: %q is not a container", ErrBadType, c))
		}
	}
	return nil
}

// End is the counterpart to [Variant.Begin]: it closes the given
// containers ('v', 'm', 'a', ')', '}'). An empty containers string
// closes the single current container.
func (v *Variant) End(containers string) error {
	if v == nil {
		return fmt.Errorf("%w: cannot write to the unit variant", ErrTypeMismatch)
	}
	if v.sealed {
		return v.setPoison(ErrSealed)
	}

	if containers == "" {
		return v.endOne()
	}

	for i := 0; i < len(containers); i++ {
		var enclosing byte
		switch c := containers[i]; c {
		case elemVariant, elemMaybe, elemArray:
			enclosing = c
		case elemTupleClose:
			enclosing = elemTupleOpen
		case elemPairClose:
			enclosing = elemPairOpen
		default:
			return v.setPoison(fmt.Errorf("%w: %q is not a container", ErrBadType, c))
		}
		if err := v.endTry(enclosing); err != nil {
			return err
		}
	}
	return nil
}

// Write serializes data at the cursor according to signature. For
// each type in the signature, Write consumes arguments:
//
//   - basic types take the value itself (bool for 'b', uint8 for 'y',
//     int16 'n', uint16 'q', int32 'i', uint32 'u' and 'h', int64 'x',
//     uint64 't', float64 'd', string for 's', 'o', 'g').
//   - 'v' takes the inner type as a string; the variant is opened and
//     its contents written recursively.
//   - 'm' takes a bool: true writes a present child recursively,
//     false writes the empty maybe.
//   - 'a' takes an element count as an int; that many elements are
//     written recursively.
//   - '(' and '{' take no argument; the container is opened and its
//     children written in place.
//
// Processing stops at the first error, which is returned.
func (v *Variant) Write(signature string, args ...any) error {
	if signature == "" {
		return nil
	}
	if v == nil {
		if signature == "()" {
			return nil
		}
		return fmt.Errorf("%w: cannot write to the unit variant", ErrTypeMismatch)
	}
	if v.sealed {
		return v.setPoison(ErrSealed)
	}
	if err := checkSignature(signature); err != nil {
		return v.setPoison(err)
	}

	var va varg
	argIdx := 0
	for c := va.init(signature); c != 0; c = va.next() {
		switch {
		case c == -1: // level done
			v.endOne()

		case c == elemVariant:
			typ, err := stringArg(args, &argIdx)
			if err != nil {
				return v.setPoison(err)
			}
			if err := v.beginOne(elemVariant, typ); err != nil {
				return err
			}
			va.push(typ, -1)

		case c == elemMaybe || c == elemArray:
			n, err := countArg(byte(c), args, &argIdx)
			if err != nil {
				return v.setPoison(err)
			}
			if err := v.beginOne(byte(c), ""); err != nil {
				return err
			}
			va.enterBound(v.top().typ, n)

		case c == elemTupleOpen || c == elemPairOpen:
			if err := v.beginOne(byte(c), ""); err != nil {
				return err
			}
			va.enterUnbound(v.top().typ)

		case isBasic(byte(c)):
			if argIdx >= len(args) {
				return v.mismatch("missing value for %q", byte(c))
			}
			arg := args[argIdx]
			argIdx++
			if err := v.writeOne(byte(c), arg); err != nil {
				return err
			}

		default:
			return v.setPoison(fmt.Errorf("%w: cannot write %q", ErrBadType, byte(c)))
		}
	}
	return nil
}

// Insert splices pre-serialized content into the variant without
// copying it: the next element at the current level must be exactly
// typ, and spans must hold its complete serialized form. The spans
// are referenced, not copied; they must remain accessible and
// unmodified for the lifetime of the variant.
func (v *Variant) Insert(typ string, spans ...[]byte) error {
	if v == nil {
		return fmt.Errorf("%w: cannot write to the unit variant", ErrTypeMismatch)
	}
	if v.sealed {
		return v.setPoison(ErrSealed)
	}
	info, err := ParseType(typ)
	if err != nil {
		return v.setPoison(err)
	}

	l := v.top()
	if len(l.typ) == 0 || mustNextType(l.typ).Type != typ {
		return v.mismatch("inserting %q, next type is %q", typ, l.typ)
	}

	var total int
	for _, s := range spans {
		total += len(s)
	}
	if info.Size > 0 && total != info.Size {
		return v.mismatch("inserting %q: got %d bytes, fixed size is %d", typ, total, info.Size)
	}

	_, _, framed, err := v.appendElem(typ[0], 0)
	if err != nil {
		return err
	}

	// Split the active front span at the cursor and splice the
	// caller's spans in between.
	f := l.vFront
	rest := v.vecs[f].data[l.iFront:]
	if err := v.insertVecs(f+1, len(spans)+1); err != nil {
		return err
	}
	v.vecs[f].data = v.vecs[f].data[:l.iFront]
	for i, s := range spans {
		v.vecs[f+1+i] = span{data: s}
	}
	v.vecs[f+1+len(spans)] = span{data: rest}

	l.vFront = f + 1 + len(spans)
	l.iFront = 0
	l.offset += total

	if framed {
		tv := len(v.vecs) - l.vTail - 1
		binary.LittleEndian.PutUint64(v.vecs[tv].data[l.iTail-8:], uint64(l.offset))
	}
	return nil
}

// Seal closes all open containers, clips and releases unused buffer
// space, and freezes the variant: afterwards it is read-only, with
// the cursor rewound to the root as if freshly wrapped. Sealing an
// already sealed variant just rewinds it.
func (v *Variant) Seal() error {
	if v == nil {
		return nil
	}
	if v.sealed {
		v.Rewind()
		return nil
	}

	for !v.onRootLevel() {
		if err := v.endOne(); err != nil {
			return err
		}
	}

	l := v.top()
	v.foldFront(l, len(v.vecs)-l.vTail-1)
	v.vecs[l.vFront].data = v.vecs[l.vFront].data[:l.iFront]
	v.vecs = v.vecs[:l.vFront+1]
	v.sealed = true
	levelRoot(l, l.offset, v.typ)
	return nil
}
