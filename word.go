package gvariant

import "encoding/binary"

// Framing offsets are stored as unaligned little-endian words. The
// word size of a container is the smallest of {1, 2, 4, 8} bytes that
// can represent any byte position inside it. Real data is always
// properly aligned and sized; words are used for framing offsets
// only.

// wordSize returns the power-of-two exponent of the word size needed
// to frame a container holding base bytes of data plus extra framing
// words. Note that wordsize 0 is returned for empty containers too;
// callers must special-case "no words at all" themselves.
func wordSize(base, extra int) uint8 {
	switch {
	case base+extra <= 0xff:
		return 0
	case base+extra*2 <= 0xffff:
		return 1
	case base+extra*4 <= 0xffffffff:
		return 2
	default:
		return 3
	}
}

// wordFetch reads one little-endian word of 1<<wz bytes from the
// start of b.
func wordFetch(b []byte, wz uint8) int {
	switch wz {
	case 0:
		return int(b[0])
	case 1:
		return int(binary.LittleEndian.Uint16(b))
	case 2:
		return int(binary.LittleEndian.Uint32(b))
	case 3:
		return int(binary.LittleEndian.Uint64(b))
	default:
		panic("gvariant: impossible word size")
	}
}

// wordStore writes one little-endian word of 1<<wz bytes to the start
// of b.
func wordStore(b []byte, wz uint8, value int) {
	switch wz {
	case 0:
		b[0] = byte(value)
	case 1:
		binary.LittleEndian.PutUint16(b, uint16(value))
	case 2:
		binary.LittleEndian.PutUint32(b, uint32(value))
	case 3:
		binary.LittleEndian.PutUint64(b, uint64(value))
	default:
		panic("gvariant: impossible word size")
	}
}
