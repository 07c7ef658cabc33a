// Package gvariant implements the GVariant binary serialization
// format: a typed, self-describing, little-endian wire format
// designed for zero-copy message exchange.
//
// A value is described by a short textual type string and laid out as
// a byte sequence whose structure is fully determined by that type,
// with dynamic sizing carried in trailing framing offsets. Types are
// built from the basic elements
//
//	b y n q i u x t h d s o g
//
// and the containers 'a' (array), 'm' (maybe), '(...)' (tuple),
// '{kv}' (pair, with a basic key), and 'v' (a value boxed together
// with its own type).
//
// # Reading and writing
//
// [New] creates an unsealed variant for writing; [NewFromSpans] wraps
// received bytes for reading. The cursor-level API ([Variant.Begin],
// [Variant.Write], [Variant.End], [Variant.Enter], [Variant.Read],
// [Variant.Exit]) walks values one element at a time, mirroring the
// nesting of the type:
//
//	v, _ := gvariant.New("(us)")
//	v.Write("(us)", uint32(7), "seven")
//	v.Seal()
//
//	var u uint32
//	var s string
//	v.Read("(us)", &u, &s)
//
// [Marshal] and [Unmarshal] offer a reflection-driven layer on top,
// mapping Go values to wire types as described at [SignatureOf].
//
// # Malformed data
//
// A reader never trusts its input: malformed framing yields the
// affected element's default value rather than an error, so a
// truncated or corrupted message from a peer degrades without
// aborting decoding. Only structural disagreement between the
// caller's requested types and the variant's actual type reports an
// error. Every error is additionally latched on the variant as its
// poison ([Variant.Poison]), so a long sequence of operations can be
// checked once at the end.
//
// A variant's serialized form is held as an ordered sequence of byte
// spans rather than one contiguous buffer. Readers accept scattered
// input directly; writers assemble output in place and expose it via
// [Variant.Spans] without a final copy.
package gvariant
