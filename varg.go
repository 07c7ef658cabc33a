package gvariant

// MaxVararg is the maximum number of levels a single compound Read or
// Write call tracks. The top level of the signature takes one, and
// every container or 'v' payload entered takes another, so such a
// signature can nest at most MaxVararg-1 levels deep. Deeper
// structures must be walked with explicit Enter/Exit or Begin/End
// calls.
const MaxVararg = 16

// A varg walks a compound signature for Read and Write, independent
// of any variant. Each frame holds the residual type characters of
// one nesting level and, for array and maybe frames, the remaining
// element count.
type vargLevel struct {
	typ    string
	nArray int // remaining elements, or -1 for non-array frames
}

type varg struct {
	levels  [MaxVararg]vargLevel
	iLevels int
}

// init points the walker at signature and returns the first element
// code, as per next.
func (va *varg) init(signature string) int {
	va.iLevels = 0
	va.levels[0] = vargLevel{typ: signature, nArray: -1}
	return va.next()
}

// next returns the next element character of interest, -1 to signal
// "leave the current level", or 0 at the end of the signature. Array
// frames replay their element type until the count runs out.
func (va *varg) next() int {
	vl := &va.levels[va.iLevels]

	var c int
	if vl.nArray < 0 {
		if len(vl.typ) > 0 {
			c = int(vl.typ[0])
			vl.typ = vl.typ[1:]
		}
	} else if vl.nArray > 0 {
		c = int(vl.typ[0])
		vl.nArray--
	}

	if c == 0 {
		if va.iLevels == 0 {
			return 0 // end of signature
		}
		va.iLevels--
		return -1 // level done
	}
	return c
}

// push enters a new frame holding typ. nArray is the element count
// for array/maybe frames, or -1.
//
// Exceeding MaxVararg cannot produce predictable behavior, so it is
// treated as a fatal programming error rather than a recoverable one.
func (va *varg) push(typ string, nArray int) {
	if va.iLevels+1 >= MaxVararg {
		panic("gvariant: signature too deeply nested for compound access")
	}
	va.iLevels++
	va.levels[va.iLevels] = vargLevel{typ: typ, nArray: nArray}
}

// enterBound enters a bound container ('m', 'a') whose child type is
// childTyp. A non-array parent frame is advanced past the child's
// characters; array frames replay their element and keep their
// cursor.
func (va *varg) enterBound(childTyp string, nArray int) {
	vl := &va.levels[va.iLevels]
	va.push(childTyp, nArray)
	if vl.nArray < 0 {
		vl.typ = vl.typ[len(childTyp):]
	}
}

// enterUnbound enters a bracketed container whose child types are
// childTyp, skipping the closing bracket in the parent frame.
func (va *varg) enterUnbound(childTyp string) {
	vl := &va.levels[va.iLevels]
	va.push(childTyp, -1)
	if vl.nArray < 0 {
		vl.typ = vl.typ[len(childTyp)+1:]
	}
}

// enterDefault enters the container c whose type starts at the
// current frame's cursor, taking the child types from the signature
// itself rather than from a variant. Read uses it so that its walk
// follows the caller's signature, and the fallback paths use it where
// the variant cannot be accessed but the signature must still be
// walked. The caller guarantees that the signature parsed as a whole,
// so re-parsing here cannot fail.
func (va *varg) enterDefault(c byte, nArray int) {
	vl := &va.levels[va.iLevels]

	full := vl.typ
	if vl.nArray < 0 {
		// next() already consumed the container character.
		full = string(c) + vl.typ
	}
	info := mustNextType(full)

	switch c {
	case elemMaybe, elemArray:
		va.push(info.Type[1:], nArray)
	case elemTupleOpen, elemPairOpen:
		va.push(info.Type[1:len(info.Type)-1], -1)
	default:
		panic("gvariant: default entry into non-container")
	}
	if vl.nArray < 0 {
		vl.typ = vl.typ[len(info.Type)-1:]
	}
}
