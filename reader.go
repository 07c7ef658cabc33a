package gvariant

import (
	"encoding/binary"
	"fmt"
	"math"
)

// peek looks at the element ahead of the cursor on the current level
// and works out the byte slot it occupies. element is the type
// character the caller expects next.
//
// On success it returns the parsed type summary, the slot size, the
// offset at which the slot ends, and (if wantFront) the linearly
// accessible bytes at the cursor, or nil if the slot is not covered
// by a single span.
//
// If the container cannot satisfy the element (a framing offset out
// of range, truncated data), size is 0 and the caller substitutes the
// default value. Only an element/type disagreement is an error.
func (v *Variant) peek(element byte, wantFront bool) (info TypeInfo, size, end int, front []byte, err error) {
	l := v.top()

	if len(l.typ) == 0 || l.typ[0] != element || l.index == 0 {
		return TypeInfo{}, 0, 0, nil, v.mismatch("reading %q, next type is %q", element, l.typ)
	}

	info = mustNextType(l.typ)
	levelAlign(l, info.Alignment)
	offset := l.offset

	if info.Size > 0 {
		offset += info.Size
	} else {
		wz := 1 << l.wordsize

		switch l.enclosing {
		case elemVariant:
			// index holds the offset of the embedded type string; the
			// value ends one NUL byte before it.
			offset = l.index - 1
		case elemMaybe:
			offset = l.size - 1
		case elemArray:
			if tail := v.levelTail(l, (l.index-1)*wz); wz <= len(tail) {
				offset = wordFetch(tail[len(tail)-wz:], l.wordsize)
			}
		case elemTupleOpen, elemPairOpen:
			idx := (l.index - 1) * wz
			if len(info.Type) == len(l.typ) {
				// Last child: it ends where the framing table starts.
				if idx <= l.size {
					offset = l.size - idx
				}
			} else if tail := v.levelTail(l, idx); wz <= len(tail) {
				offset = wordFetch(tail[len(tail)-wz:], l.wordsize)
			}
		default:
			panic("gvariant: unknown enclosing container")
		}
	}

	end = offset

	// Truncate the slot to empty if the frame exceeds the container.
	if offset >= l.offset && offset <= l.size {
		size = offset - l.offset
	}

	if wantFront {
		if f := v.levelFront(l); size <= len(f) {
			front = f
		}
	}
	return info, size, end, front, nil
}

// advance moves the cursor past the element described by info, whose
// slot ends at end, and updates the container bookkeeping.
func (v *Variant) advance(l *level, info TypeInfo, end int) {
	v.levelJump(l, end)

	switch l.enclosing {
	case elemMaybe, elemArray:
		l.index--
	case elemTupleOpen, elemPairOpen:
		if info.Size == 0 {
			l.index++
		}
		l.typ = l.typ[len(info.Type):]
	default:
		l.typ = l.typ[len(info.Type):]
	}
}

// enterOne moves the cursor into the container ahead, which must be
// of the given kind.
func (v *Variant) enterOne(container byte) error {
	l := v.top()

	info, size, end, _, err := v.peek(container, false)
	if err != nil {
		return err
	}

	next := v.pushLevel()
	*next = level{
		size:      size,
		iTail:     l.iFront + size,
		vTail:     l.vFront,
		wordsize:  wordSize(size, 0),
		enclosing: container,
		typ:       info.Type[1:],
		vFront:    l.vFront,
		iFront:    l.iFront,
	}

	switch container {
	case elemVariant:
		// The embedded type trails the value, separated by a NUL
		// byte: scan the tail backwards for the separator, then parse
		// what follows. Anything that does not parse as one complete
		// type degrades to the unit type.
		tail := v.levelTail(next, 0)
		for i := 1; i < len(tail); i++ {
			if tail[len(tail)-i-1] != 0 {
				continue
			}
			if typ := string(tail[len(tail)-i:]); isOneType(typ) {
				next.typ = typ
				next.index = size - i
			}
			break
		}
		if next.index == 0 {
			next.typ = "()"
			next.index = 1
		}

	case elemMaybe:
		if size > 0 && (info.BoundSize == 0 || info.BoundSize == size) {
			next.index = 1
		}

	case elemArray:
		if info.BoundSize > 0 {
			// Fixed-size elements: the element count must divide
			// evenly, else the array reads as empty.
			if size%info.BoundSize == 0 {
				next.index = size / info.BoundSize
			}
		} else {
			// Dynamic elements: the last framing offset marks the end
			// of the element data; everything after it is the framing
			// table.
			wz := 1 << next.wordsize
			if tail := v.levelTail(next, 0); wz <= len(tail) {
				last := wordFetch(tail[len(tail)-wz:], next.wordsize)
				num := size - last
				if last < size && num%wz == 0 {
					next.index = num / wz
				}
			}
		}

	case elemTupleOpen, elemPairOpen:
		next.typ = info.Type[1 : len(info.Type)-1]
		next.index = 1

	default:
		panic("gvariant: unknown enclosing container")
	}

	v.advance(l, info, end)
	return nil
}

func isOneType(typ string) bool {
	_, err := ParseType(typ)
	return err == nil
}

func (v *Variant) exitOne() error {
	if v.onRootLevel() {
		return v.mismatch("exit from the root level")
	}
	v.popLevel()
	return nil
}

func (v *Variant) exitTry(container byte) error {
	if v.top().enclosing != container {
		return v.mismatch("exiting %q, enclosing container is %q", container, v.top().enclosing)
	}
	return v.exitOne()
}

// readOne reads the basic element ahead into arg, which must be a
// pointer to the matching Go type, or nil to skip the value. A
// truncated or malformed slot yields the element's default value.
func (v *Variant) readOne(basic byte, arg any) error {
	info, size, end, front, err := v.peek(basic, true)
	if err != nil {
		return err
	}

	var buf [8]byte
	if front != nil && size == info.Size {
		copy(buf[:], front[:size])
	}

	ok := true
	switch basic {
	case elemBool:
		ok = assign(arg, buf[0] != 0)
	case elemByte:
		ok = assign(arg, buf[0])
	case elemInt16:
		ok = assign(arg, int16(binary.LittleEndian.Uint16(buf[:])))
	case elemUint16:
		ok = assign(arg, binary.LittleEndian.Uint16(buf[:]))
	case elemInt32:
		ok = assign(arg, int32(binary.LittleEndian.Uint32(buf[:])))
	case elemUint32, elemHandle:
		ok = assign(arg, binary.LittleEndian.Uint32(buf[:]))
	case elemInt64:
		ok = assign(arg, int64(binary.LittleEndian.Uint64(buf[:])))
	case elemUint64:
		ok = assign(arg, binary.LittleEndian.Uint64(buf[:]))
	case elemDouble:
		ok = assign(arg, math.Float64frombits(binary.LittleEndian.Uint64(buf[:])))
	case elemString, elemPath, elemSignature:
		// String-like values must be NUL terminated; anything else
		// reads as the empty string.
		var s string
		if front != nil && size > 0 && front[size-1] == 0 {
			s = string(front[:size-1])
		}
		ok = assign(arg, s)
	default:
		panic("gvariant: read of non-basic element")
	}
	if !ok {
		return v.mismatch("reading %q into %T", basic, arg)
	}

	v.advance(v.top(), info, end)
	return nil
}

// assign stores val through arg if arg is a non-nil *T. A nil arg
// skips the value; anything else is a caller error.
func assign[T any](arg any, val T) bool {
	if arg == nil {
		return true
	}
	p, ok := arg.(*T)
	if !ok {
		return false
	}
	if p != nil {
		*p = val
	}
	return true
}

// PeekCount returns the number of dynamic elements left to read at
// the current level: the remaining element count for arrays, 0 or 1
// for maybes, and for any other container 1 if any types remain. A
// return of 0 means there is nothing left to read without an
// intervening Exit.
func (v *Variant) PeekCount() int {
	if v == nil {
		return 1
	}
	if !v.sealed {
		return 0
	}
	l := v.top()
	switch l.enclosing {
	case elemArray, elemMaybe:
		return l.index
	default:
		if len(l.typ) > 0 {
			return 1
		}
		return 0
	}
}

// PeekType returns the residual type string at the current level:
// the types that can be read from the cursor position without an
// intervening Exit. Inside a null variant it returns "()".
func (v *Variant) PeekType() string {
	if v == nil {
		return "()"
	}
	return v.top().typ
}

// Enter moves the cursor into the containers ahead. containers is a
// string of container kinds ('v', 'm', 'a', '(', '{'), entered one
// after the other; if it is empty, the single next container ahead is
// entered, whatever its kind.
//
// If the type ahead is not a container of the requested kind, Enter
// stops at that point with an error.
func (v *Variant) Enter(containers string) error {
	if v == nil {
		return fmt.Errorf("%w: cannot move the unit variant", ErrTypeMismatch)
	}
	if !v.sealed {
		return v.setPoison(ErrUnsealed)
	}

	if containers == "" {
		l := v.top()
		if len(l.typ) == 0 {
			return v.mismatch("no container ahead")
		}
		containers = l.typ[:1]
	}

	for i := 0; i < len(containers); i++ {
		switch c := containers[i]; c {
		case elemVariant, elemMaybe, elemArray, elemTupleOpen, elemPairOpen:
			if err := v.enterOne(c); err != nil {
				return err
			}
		default:
			return v.setPoison(fmt.Errorf("%w: %q is not a container", ErrBadType, containers[i]))
		}
	}
	return nil
}

// Exit is the counterpart to [Variant.Enter]: it leaves the given
// containers ('v', 'm', 'a', ')', '}'), returning to their parents.
// An empty containers string exits the single current container.
func (v *Variant) Exit(containers string) error {
	if v == nil {
		return fmt.Errorf("%w: cannot move the unit variant", ErrTypeMismatch)
	}
	if !v.sealed {
		return v.setPoison(ErrUnsealed)
	}

	if containers == "" {
		return v.exitOne()
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
			return v.setPoison(fmt.Errorf("%w: %q is not a container", ErrBadType, containers[i]))
		}
		if err := v.exitTry(enclosing); err != nil {
			return err
		}
	}
	return nil
}

// Rewind resets the cursor to the start of the root container.
func (v *Variant) Rewind() {
	if v == nil || !v.sealed {
		return
	}
	for v.popLevel() {
	}
	levelRoot(v.top(), v.top().size, v.typ)
}

// Read deserializes data at the cursor according to signature,
// advancing the cursor over each type read. For each type in the
// signature, Read consumes arguments:
//
//   - basic types take a pointer to the matching Go type (*bool for
//     'b', *uint8 for 'y', *int16 'n', *uint16 'q', *int32 'i',
//     *uint32 'u' and 'h', *int64 'x', *uint64 't', *float64 'd',
//     *string for 's', 'o', 'g'). A nil argument skips the value.
//   - 'v' takes the expected inner type as a string; the variant is
//     entered and its contents read recursively. An empty string
//     skips the variant.
//   - 'm' takes a bool: whether the caller expects the maybe to be
//     non-empty. If true, the child is read recursively.
//   - 'a' takes an element count as an int; that many elements are
//     read recursively.
//   - '(' and '{' take no argument; the container is entered and its
//     children read in place.
//
// If a requested type does not match the variant, Read fails at that
// element, but still assigns the default value to every remaining
// output argument, so all outputs are valid even on error.
func (v *Variant) Read(signature string, args ...any) error {
	if signature == "" {
		return nil
	}
	if err := checkSignature(signature); err != nil {
		if v != nil {
			v.setPoison(err)
		}
		return err
	}

	var va varg
	c := va.init(signature)

	if v == nil {
		if signature == "()" {
			return nil
		}
		readDefault(&va, c, args, new(int))
		return fmt.Errorf("%w: cannot read from the unit variant", ErrTypeMismatch)
	}
	if !v.sealed {
		return v.setPoison(ErrUnsealed)
	}

	argIdx := 0
	for ; c != 0; c = va.next() {
		switch {
		case c == -1: // level done
			v.exitOne()

		case c == elemVariant:
			typ, err := stringArg(args, &argIdx)
			if err != nil {
				return v.setPoison(err)
			}
			if typ != "" && !isOneType(typ) {
				return v.setPoison(fmt.Errorf("%w: bad variant type %q", ErrBadType, typ))
			}
			if err := v.enterOne(elemVariant); err != nil {
				if typ != "" {
					va.push(typ, -1)
				}
				readDefault(&va, va.next(), args, &argIdx)
				return err
			}
			if typ == "" {
				v.exitOne()
			} else {
				va.push(typ, -1)
			}

		case c == elemMaybe || c == elemArray:
			n, err := countArg(byte(c), args, &argIdx)
			if err != nil {
				return v.setPoison(err)
			}
			if err := v.enterOne(byte(c)); err != nil {
				va.enterDefault(byte(c), n)
				readDefault(&va, va.next(), args, &argIdx)
				return err
			}
			va.enterDefault(byte(c), n)

		case c == elemTupleOpen || c == elemPairOpen:
			if err := v.enterOne(byte(c)); err != nil {
				va.enterDefault(byte(c), -1)
				readDefault(&va, va.next(), args, &argIdx)
				return err
			}
			va.enterDefault(byte(c), -1)

		case isBasic(byte(c)):
			var arg any
			if argIdx < len(args) {
				arg = args[argIdx]
			}
			argIdx++
			if err := v.readOne(byte(c), arg); err != nil {
				assignDefault(byte(c), arg)
				readDefault(&va, va.next(), args, &argIdx)
				return err
			}

		default:
			return v.setPoison(fmt.Errorf("%w: cannot read %q", ErrBadType, byte(c)))
		}
	}
	return nil
}

// readDefault is the fallback driver for Read: once reading has
// failed, it walks the rest of the signature and assigns the default
// value to every remaining output argument, so that all outputs are
// valid even when Read reports an error. c is the element whose read
// just failed.
func readDefault(va *varg, c int, args []any, argIdx *int) {
	for ; c != 0; c = va.next() {
		switch {
		case c == -1:
			// level done, nothing to do

		case c == elemVariant:
			typ, err := stringArg(args, argIdx)
			if err != nil {
				return
			}
			if typ != "" && isOneType(typ) {
				va.push(typ, -1)
			}

		case c == elemMaybe || c == elemArray:
			n, err := countArg(byte(c), args, argIdx)
			if err != nil {
				return
			}
			va.enterDefault(byte(c), n)

		case c == elemTupleOpen || c == elemPairOpen:
			va.enterDefault(byte(c), -1)

		case isBasic(byte(c)):
			var arg any
			if *argIdx < len(args) {
				arg = args[*argIdx]
			}
			*argIdx++
			assignDefault(byte(c), arg)

		default:
			return
		}
	}
}

func assignDefault(basic byte, arg any) {
	switch basic {
	case elemBool:
		assign(arg, false)
	case elemByte:
		assign(arg, byte(0))
	case elemInt16:
		assign(arg, int16(0))
	case elemUint16:
		assign(arg, uint16(0))
	case elemInt32:
		assign(arg, int32(0))
	case elemUint32, elemHandle:
		assign(arg, uint32(0))
	case elemInt64:
		assign(arg, int64(0))
	case elemUint64:
		assign(arg, uint64(0))
	case elemDouble:
		assign(arg, float64(0))
	case elemString, elemPath, elemSignature:
		assign(arg, "")
	}
}

// stringArg consumes a string argument (the inner type of a 'v').
func stringArg(args []any, argIdx *int) (string, error) {
	if *argIdx >= len(args) {
		return "", fmt.Errorf("%w: missing variant type argument", ErrTypeMismatch)
	}
	arg := args[*argIdx]
	*argIdx++
	s, ok := arg.(string)
	if !ok {
		return "", fmt.Errorf("%w: variant type argument is %T, not string", ErrTypeMismatch, arg)
	}
	return s, nil
}

// countArg consumes the element count of an 'a' (int) or the
// presence flag of an 'm' (bool).
func countArg(container byte, args []any, argIdx *int) (int, error) {
	if *argIdx >= len(args) {
		return 0, fmt.Errorf("%w: missing count argument for %q", ErrTypeMismatch, container)
	}
	arg := args[*argIdx]
	*argIdx++
	switch a := arg.(type) {
	case int:
		if container == elemArray {
			return a, nil
		}
	case bool:
		if container == elemMaybe {
			if a {
				return 1, nil
			}
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: bad count argument %T for %q", ErrTypeMismatch, arg, container)
}

// checkSignature validates that signature is a well-formed sequence
// of complete types.
func checkSignature(signature string) error {
	rest := signature
	for rest != "" {
		info, err := NextType(rest)
		if err != nil {
			return err
		}
		rest = rest[len(info.Type):]
	}
	return nil
}
