package gvariant

// A level is the per-container cursor state of a variant. Levels form
// a stack: entering a container pushes one, exiting pops it.
//
// Mostly static fields, set when the container is entered:
//   - size: bytes available to this container.
//   - iTail, vTail: the tail cursor. For readers, iTail is the byte
//     index of the container's end relative to the start of span
//     vTail, reconciled lazily as tail accesses cross span
//     boundaries. For writers, vTail counts spans from the end of the
//     span sequence and iTail is the write position inside that span.
//   - wordsize: cached framing word size (power of two exponent).
//   - enclosing: the container kind ('(', '{', 'a', 'm', 'v'; the
//     root level is an implicit tuple).
//
// Mostly dynamic fields, updated as the cursor advances:
//   - typ: the residual type characters to be consumed at this level.
//   - vFront, iFront, offset: the front cursor. offset is the logical
//     byte distance from the container start; vFront/iFront locate it
//     in the span sequence, reconciled lazily ("folding") when the
//     offset crosses a span boundary.
//   - index: container-specific state. For readers: for arrays, the
//     number of elements still to be processed; for tuples and pairs,
//     one plus the number of dynamic-sized children already processed;
//     for maybes, 1 iff non-empty; for 'v', the offset of the embedded
//     type string. For writers: for arrays, tuples and pairs, the
//     number of framing entries accumulated at the tail; for maybes, 1
//     iff a dynamic-sized child was written; for 'v', the length of the
//     inner type.
type level struct {
	size      int
	iTail     int
	vTail     int
	wordsize  uint8
	enclosing byte

	typ    string
	vtype  string // writer 'v' levels: the full inner type, emitted on close
	vFront int
	iFront int
	index  int
	offset int
}

// levelRoot initializes l as the root level of a sealed variant
// occupying size bytes.
func levelRoot(l *level, size int, typ string) {
	*l = level{
		size:      size,
		iTail:     size,
		wordsize:  wordSize(size, 0),
		enclosing: elemTupleOpen,
		typ:       typ,

		// For non-arrays, index is one plus the number of dynamic
		// sized children processed so far.
		index: 1,
	}
}

// levelAlign advances the front cursor past the padding required to
// align it to 1<<alignment bytes. Spans may be split arbitrarily, so
// padding is computed from the logical offset, which is 0 at the
// start of the container and therefore aligned to the container's own
// alignment.
func levelAlign(l *level, alignment uint8) {
	off := alignUp(l.offset, 1<<alignment)
	l.iFront += off - l.offset
	l.offset = off
}

// levelJump moves the front cursor to offset, relative to the start
// of the container. Backward jumps only occur on non-canonical data;
// they fold the front eagerly.
func (v *Variant) levelJump(l *level, offset int) {
	if offset >= l.offset {
		l.iFront += offset - l.offset
	} else {
		diff := l.offset - offset
		for diff > l.iFront {
			if l.vFront == 0 {
				// Cannot jump before the first span; clamp.
				diff = l.iFront
				break
			}
			diff -= l.iFront
			l.vFront--
			l.iFront = len(v.vecs[l.vFront].data)
		}
		l.iFront -= diff
	}
	l.offset = offset
}

// levelFront folds the front cursor onto the span sequence and
// returns the bytes linearly accessible at the current position,
// clipped to the container. The result may be empty, in particular
// when the cursor sits outside the container.
func (v *Variant) levelFront(l *level) []byte {
	if l.offset >= l.size {
		return nil
	}
	for l.vFront < len(v.vecs) && l.iFront >= len(v.vecs[l.vFront].data) {
		l.iFront -= len(v.vecs[l.vFront].data)
		l.vFront++
	}
	if l.vFront >= len(v.vecs) {
		return nil
	}
	d := v.vecs[l.vFront].data
	n := len(d) - l.iFront
	if m := l.size - l.offset; n > m {
		n = m
	}
	return d[l.iFront : l.iFront+n]
}

// levelTail maps the tail of the container. skip is a negative offset
// relative to the container's end; the returned bytes are the largest
// linear region ending exactly skip bytes before the end. The tail
// cursor cannot move, so boundary reconciliation happens in both
// directions: unfolding when skip grew since the last access, folding
// when it shrank.
func (v *Variant) levelTail(l *level, skip int) []byte {
	if skip >= l.size {
		return nil
	}
	// Unfold, if skip increased compared to the previous call.
	for skip >= l.iTail {
		if l.vTail == 0 {
			return nil
		}
		l.vTail--
		l.iTail += len(v.vecs[l.vTail].data)
	}
	// Fold, if skip decreased compared to the previous call.
	for l.vTail < len(v.vecs) && l.iTail-skip > len(v.vecs[l.vTail].data) {
		l.iTail -= len(v.vecs[l.vTail].data)
		l.vTail++
	}
	if l.vTail >= len(v.vecs) {
		return nil
	}
	d := v.vecs[l.vTail].data
	n := l.iTail - skip
	if l.size < l.iTail {
		n = l.size - skip
	}
	end := l.iTail - skip
	if end > len(d) || n > end {
		return nil
	}
	return d[end-n : end]
}

// Levels spill into linked chunks once the inline chunk fills up, so
// stack depth is unbounded. One empty spare chunk is cached per
// variant for reuse across enter/exit cycles.
const levelsPerChunk = 32

type levelChunk struct {
	parent *levelChunk
	n      int
	levels [levelsPerChunk]level
}

func (v *Variant) top() *level {
	return &v.state.levels[v.state.n-1]
}

func (v *Variant) pushLevel() *level {
	if v.state.n < levelsPerChunk {
		v.state.n++
		return v.top()
	}
	c := v.unused
	if c != nil {
		v.unused = nil
	} else {
		c = new(levelChunk)
	}
	c.parent = v.state
	c.n = 1
	v.state = c
	return v.top()
}

func (v *Variant) popLevel() bool {
	if v.state.n > 1 {
		v.state.n--
		return true
	}
	if p := v.state.parent; p != nil {
		v.state.parent = nil
		if v.unused == nil {
			v.unused = v.state
		}
		v.state = p
		return true
	}
	return false
}

// onRootLevel reports whether the cursor is at the root level: one
// entry in the first chunk.
func (v *Variant) onRootLevel() bool {
	return v.state.parent == nil && v.state.n == 1
}
