package gvariant

import "fmt"

// Limits on the type strings the codec accepts. Types are static in
// any sane program, so these are generous; they exist so that parsing
// complexity stays bounded on untrusted input.
const (
	// MaxDepth is the maximum container nesting depth of a type
	// string. It does not apply to true recursion via 'v' elements.
	MaxDepth = 255

	// MaxSignature is the maximum length of a type string.
	MaxSignature = 65535
)

// TypeInfo summarizes one parsed GVariant type.
type TypeInfo struct {
	// Alignment is the type's alignment, as a power of two exponent
	// (0..3).
	Alignment uint8
	// Size is the serialized size in bytes if the type is fixed-size,
	// or 0.
	Size int
	// BoundSize is the fixed size of the direct child of a bound
	// container ('m', 'a'), or 0 if the child is dynamic-sized or the
	// type is not a bound container.
	BoundSize int
	// Depth is the maximum container nesting depth of the type.
	Depth int
	// Type is the textual span of the type, a prefix of the parsed
	// input.
	Type string
}

// Fixed reports whether the type has a fixed serialized size.
func (t TypeInfo) Fixed() bool { return t.Size > 0 }

const (
	frameBound = iota
	frameTuple
	framePairKey
	framePairValue
	framePairDone
)

type sigFrame struct {
	state     uint8
	alignment uint8
	aligned   uint8 // padding added on open that can be reclaimed
}

// NextType parses the leading type of signature and returns its
// summary. The caller can slice off info.Type and call NextType again
// to walk a multi-type signature. An empty signature yields a zero
// TypeInfo with len(info.Type) == 0 and no error.
//
// Parsing is a non-recursive pushdown over the signature characters.
// Container alignment is not known until the container closes, so an
// opening bracket max-aligns the accumulated fixed size to 8 and
// remembers how much of that padding is reclaimable if the final
// alignment turns out smaller.
func NextType(signature string) (TypeInfo, error) {
	if len(signature) > MaxSignature {
		return TypeInfo{}, ErrSignatureLen
	}

	// The deepest valid nesting cannot exceed len(signature)-1, so a
	// short signature gets a short stack.
	maxDepth := MaxDepth
	if maxDepth > len(signature) {
		maxDepth = len(signature)
	}
	stack := make([]sigFrame, 0, maxDepth)

	var (
		cur       = sigFrame{state: frameTuple}
		size      int
		depth     int
		fixedSize = true
	)

	for i := 0; i < len(signature); i++ {
		id := signature[i]
		el := elementInfo(id)
		if !el.real {
			return TypeInfo{}, fmt.Errorf("%w: unknown element %q", ErrBadType, id)
		}

		var isLeaf bool
		switch id {
		case elemMaybe, elemArray, elemTupleOpen, elemPairOpen:
			if len(stack) >= maxDepth {
				return TypeInfo{}, ErrDepth
			}
			if cur.state == framePairDone || cur.state == framePairKey {
				return TypeInfo{}, fmt.Errorf("%w: container as pair key", ErrBadType)
			}

			stack = append(stack, cur)
			if len(stack) > depth {
				depth = len(stack)
			}

			switch id {
			case elemTupleOpen:
				cur.state = frameTuple
			case elemPairOpen:
				cur.state = framePairKey
			default:
				cur.state = frameBound
			}

			// Assume maximum alignment for now; reclaimed on close if
			// the container's real alignment turns out smaller.
			t := alignUp(size, 8)
			cur.alignment = 0
			cur.aligned = uint8(t - size)
			size = t

		case elemTupleClose:
			if len(stack) == 0 || cur.state != frameTuple {
				return TypeInfo{}, fmt.Errorf("%w: unbalanced ')'", ErrBadType)
			}
			// The unit type has fixed size 1.
			if signature[i-1] == elemTupleOpen {
				size++
			}
			cur, stack = closeBracket(cur, stack, &size, fixedSize)
			isLeaf = true

		case elemPairClose:
			if cur.state != framePairDone {
				return TypeInfo{}, fmt.Errorf("%w: malformed pair", ErrBadType)
			}
			cur, stack = closeBracket(cur, stack, &size, fixedSize)
			isLeaf = true

		default: // basic leaves and 'v'
			if cur.state == framePairDone {
				return TypeInfo{}, fmt.Errorf("%w: pair with more than two children", ErrBadType)
			}
			if cur.state == framePairKey && !el.basic {
				return TypeInfo{}, fmt.Errorf("%w: pair key must be basic", ErrBadType)
			}

			if !el.fixed {
				fixedSize = false
			}
			if el.alignment > cur.alignment {
				cur.alignment = el.alignment
			}
			if fixedSize {
				size = alignUp(size, 1<<el.alignment)
				size += 1 << el.alignment
			}
			isLeaf = true
		}

		if !isLeaf {
			continue
		}

		// A leaf implicitly closes every bound container above it.
		boundSize := 0
		for cur.state == frameBound {
			// Bound containers are never fixed size, but the caller
			// wants to know the direct child's fixed size.
			if fixedSize {
				boundSize = size
			} else {
				boundSize = 0
			}
			fixedSize = false

			saved := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur.alignment > saved.alignment {
				saved.alignment = cur.alignment
			}
			cur = saved
		}

		switch cur.state {
		case framePairKey:
			cur.state = framePairValue
		case framePairValue:
			cur.state = framePairDone
		}

		if len(stack) == 0 {
			info := TypeInfo{
				Alignment: cur.alignment,
				BoundSize: boundSize,
				Depth:     depth,
				Type:      signature[:i+1],
			}
			if fixedSize {
				info.Size = size
			}
			return info, nil
		}
	}

	if len(signature) > 0 {
		return TypeInfo{}, fmt.Errorf("%w: truncated type %q", ErrBadType, signature)
	}
	return TypeInfo{}, nil
}

// closeBracket pops a bracketed container frame: the container was
// max-aligned when opened, so if its alignment turned out smaller the
// extra padding is reclaimed, and the container size is padded to a
// multiple of its own alignment.
func closeBracket(cur sigFrame, stack []sigFrame, size *int, fixedSize bool) (sigFrame, []sigFrame) {
	if fixedSize {
		*size -= int(cur.aligned) &^ ((1 << cur.alignment) - 1)
		*size = alignUp(*size, 1<<cur.alignment)
	}
	saved := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	if cur.alignment > saved.alignment {
		saved.alignment = cur.alignment
	}
	return saved, stack
}

// ParseType parses signature, which must contain exactly one complete
// type.
func ParseType(signature string) (TypeInfo, error) {
	info, err := NextType(signature)
	if err != nil {
		return TypeInfo{}, err
	}
	if len(info.Type) == 0 || len(info.Type) != len(signature) {
		return TypeInfo{}, fmt.Errorf("%w: %q is not a single complete type", ErrBadType, signature)
	}
	return info, nil
}

// mustNextType re-parses a type that was already validated as part of
// the variant's root type. Failure here means corrupted internal
// state.
func mustNextType(signature string) TypeInfo {
	info, err := NextType(signature)
	if err != nil || len(info.Type) == 0 {
		panic("gvariant: residual type no longer parses")
	}
	return info
}

func alignUp(v, alignment int) int {
	return (v + alignment - 1) &^ (alignment - 1)
}
