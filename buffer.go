package gvariant

// The writer assembles a variant into a scatter buffer: front data
// grows forward through the span sequence, while per-container
// framing state grows backward from the other end. New buffer space
// is allocated in exponentially growing chunks and carved between the
// two cursors.
const (
	// frontShare is the percentage of a shared allocation handed to
	// the front region; the rest feeds the tail.
	frontShare = 80

	// minBufShift/maxBufShift bound the allocation growth curve:
	// buffers start at 4 KiB and double up to 2 GiB.
	minBufShift = 12
	maxBufShift = 31
)

// foldFront advances the front cursor's span index until the byte
// index falls inside the active span. It stops short of span index
// bound (the tail span): if the front ends exactly at the last front
// span's boundary, the cursor parks at that boundary and the next
// reservation switches spans.
func (v *Variant) foldFront(l *level, bound int) {
	for l.vFront+1 < bound && l.iFront >= len(v.vecs[l.vFront].data) {
		l.iFront -= len(v.vecs[l.vFront].data)
		l.vFront++
	}
}

// swapVecs physically reorders two spans, allocation markers
// included. It is used to move a large unused span next to a cursor
// so the cursor can advance into it.
func (v *Variant) swapVecs(a, b int) {
	if a != b {
		v.vecs[a], v.vecs[b] = v.vecs[b], v.vecs[a]
	}
}

// insertVecs grows the span sequence by num empty spans at position
// idx. The caller must be aware of front/tail cursors and adjust
// them if needed; spans counted from the end keep their distance.
func (v *Variant) insertVecs(idx, num int) error {
	n := len(v.vecs) + num
	if n > MaxSpans {
		return v.setPoison(ErrTooManySpans)
	}
	// Over-allocate a little to serve future requests.
	nv := make([]span, n, n+8)
	copy(nv, v.vecs[:idx])
	copy(nv[idx+num:], v.vecs[idx:])
	v.vecs = nv
	return nil
}

// reserve advances the front and tail cursors of the current level by
// the requested amounts and returns the two reserved regions. The
// front is first aligned to 1<<frontAlign bytes relative to the
// level's global offset; the tail region (used only for 8-byte
// framing entries) stays 8-aligned by construction. If the current
// spans cannot satisfy the request, an unused span is moved into
// place, or a new buffer is allocated and split between front and
// tail.
func (v *Variant) reserve(frontAlign uint8, frontN, tailN int) (front, tail []byte, err error) {
	l := v.top()
	nFront := frontN + alignUp(l.offset, 1<<frontAlign) - l.offset
	nTail := tailN
	t := len(v.vecs) - l.vTail - 1

	// Closing a child container advances the parent's front by the
	// child's size as a plain offset, which may cross span
	// boundaries. Reconcile lazily, here on access.
	v.foldFront(l, t)
	f := l.vFront

	// If the active front span is too small, look for an unused span
	// that fits and move it adjacent, so the cursor can jump over.
	if nFront > len(v.vecs[f].data)-l.iFront {
		for i := f + 1; i < t; i++ {
			if nFront > len(v.vecs[i].data) {
				continue
			}
			v.swapVecs(i, f+1)
			f++
			nFront = 0
			break
		}
	} else {
		nFront = 0
	}

	// Counterpart for the tail.
	if nTail > len(v.vecs[t].data)-l.iTail {
		for i := t - 1; i > f; i-- {
			if nTail > len(v.vecs[i].data) {
				continue
			}
			v.swapVecs(i, t-1)
			t--
			nTail = 0
			break
		}
	} else {
		nTail = 0
	}

	// If either request is still unmet, allocate a fresh buffer.
	if nFront > 0 || nTail > 0 {
		// Make sure there are at least two unused span slots between
		// the cursors.
		if gap := t - f; gap < 3 {
			fromEnd := len(v.vecs) - t
			if err := v.insertVecs(f+1, 3-gap); err != nil {
				return nil, nil, err
			}
			t = len(v.vecs) - fromEnd
		}

		shift := minBufShift + int(v.aVecs)
		if shift > maxBufShift {
			shift = maxBufShift
		}
		n := 1 << shift
		if n < nFront+nTail+16 {
			n = nFront + nTail + 16
		}
		buf := make([]byte, n)
		if v.aVecs < 1<<8-1 {
			v.aVecs++
		}

		if nFront > 0 {
			f++
			v.vecs[f] = span{data: buf, owned: true}
		}
		if nTail > 0 {
			t--
			v.vecs[t] = span{data: buf, owned: true}
		}
		if nFront > 0 && nTail > 0 {
			// Both cursors share the buffer; split it.
			rem := n - nFront - nTail - 16
			frontLen := nFront + 8 + rem*frontShare/100
			v.vecs[f] = span{data: buf[:frontLen], owned: true}
			v.vecs[t] = span{data: buf[frontLen:]}
		}
	}

	if f != l.vFront {
		// The front moved to a new span: clip the previous one to its
		// used length and advance.
		pv := &v.vecs[l.vFront]
		pv.data = pv.data[:l.iFront]
		l.vFront++
		l.iFront = 0
	}
	if t != len(v.vecs)-l.vTail-1 {
		pt := &v.vecs[len(v.vecs)-l.vTail-1]
		pt.data = pt.data[:l.iTail]
		l.vTail++
		l.iTail = 0
	}

	// Apply the alignment, hand out the reserved regions, and advance
	// the cursors past them. Padding bytes must read back as zero, and
	// a reused span may carry stale framing state.
	pad := alignUp(l.offset, 1<<frontAlign) - l.offset
	if pad > 0 {
		clear(v.vecs[f].data[l.iFront : l.iFront+pad])
	}
	l.iFront += pad
	l.offset += pad

	front = v.vecs[f].data[l.iFront : l.iFront+frontN : l.iFront+frontN]
	l.iFront += frontN
	l.offset += frontN

	if tailN > 0 {
		tail = v.vecs[t].data[l.iTail : l.iTail+tailN : l.iTail+tailN]
		l.iTail += tailN
	}
	return front, tail, nil
}
