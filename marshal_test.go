package gvariant

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/creachadair/mds/value"
	"github.com/google/go-cmp/cmp"
)

type simple struct {
	N int16
	B bool
}

type nested struct {
	Y uint8
	S simple
}

type withDynamic struct {
	Name  string
	Count uint32
	Tags  []string
}

func ptr[T any](v T) *T { return &v }

func TestSignatureOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{uint8(0), "y"},
		{bool(false), "b"},
		{int16(0), "n"},
		{uint16(0), "q"},
		{int32(0), "i"},
		{uint32(0), "u"},
		{int64(0), "x"},
		{uint64(0), "t"},
		{float64(0), "d"},
		{string(""), "s"},
		{[]string{}, "as"},
		{[4]uint8{}, "ay"},
		{[][]string{}, "aas"},
		{map[string]int64{}, "a{sx}"},
		{simple{}, "(nb)"},
		{[]simple{}, "a(nb)"},
		{nested{}, "(y(nb))"},
		{withDynamic{}, "(suas)"},
		{ptr(uint32(0)), "mu"},
		{[]*string{}, "ams"},
		{Box{}, "v"},
		{struct{ V any }{}, "(v)"},
		{struct{}{}, "()"},

		{nil, ""},
		{int(0), ""},
		{float32(0), ""},
		{map[simple]bool{}, ""},
		{func() {}, ""},
		{make(chan int), ""},
		{value.Maybe[uint32]{}, ""},
		{value.Just("x"), ""},
		{struct{ hidden int }{}, ""},
	}

	for _, tc := range tests {
		got, err := SignatureOf(tc.in)
		gotErr := err != nil
		wantErr := tc.want == ""
		if gotErr != wantErr {
			wanted := "no error"
			if wantErr {
				wanted = "error"
			}
			t.Errorf("SignatureOf(%T) got err %v, want %s", tc.in, err, wanted)
		}
		if got != tc.want {
			t.Errorf("SignatureOf(%T) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSignatureOfRecursive(t *testing.T) {
	type tree struct {
		Children []*tree `gvariant:"-"`
		Value    uint32
	}
	// The tagged-out field breaks the cycle.
	if got, err := SignatureOf(tree{}); err != nil || got != "(u)" {
		t.Errorf("SignatureOf(tree) = %q, %v", got, err)
	}

	type loop struct {
		Next []loop
	}
	if _, err := SignatureOf(loop{}); err == nil {
		t.Error("SignatureOf(loop) got nil err, want recursion error")
	}
}

func TestMarshalWire(t *testing.T) {
	tests := []struct {
		in   any
		want []byte
	}{
		{uint32(0x00ff00ff), []byte{0xff, 0x00, 0xff, 0x00}},
		{"foo", []byte{'f', 'o', 'o', 0x00}},
		{[]uint8{1, 2, 3}, []byte{1, 2, 3}},
		{[]string{"a", "bc"}, []byte{'a', 0, 'b', 'c', 0, 0x02, 0x05}},
		{struct {
			Y uint8
			U uint32
		}{1, 0x01020304}, []byte{0x01, 0x00, 0x00, 0x00, 0x04, 0x03, 0x02, 0x01}},
		{ptr(uint32(7)), []byte{0x07, 0x00, 0x00, 0x00}},
		{(*uint32)(nil), nil},
		{map[uint8]uint8{2: 20, 1: 10}, []byte{1, 10, 2, 20}},
	}

	for _, tc := range tests {
		v, err := Marshal(tc.in)
		if err != nil {
			t.Errorf("Marshal(%#v): %v", tc.in, err)
			continue
		}
		var buf bytes.Buffer
		for _, s := range v.Spans() {
			buf.Write(s)
		}
		if got := buf.Bytes(); !bytes.Equal(got, tc.want) {
			t.Errorf("Marshal(%#v) =\n% x\nwant\n% x", tc.in, got, tc.want)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	tests := []any{
		uint8(7),
		true,
		int16(-5),
		uint16(5),
		int32(-6),
		uint32(6),
		int64(-7),
		uint64(7),
		float64(3.25),
		"hello",
		"",
		[]uint32{1, 2, 3},
		[]string{"", "a", "bc"},
		[][]uint8{{1}, {}, {2, 3}},
		map[string]uint32{"a": 1, "b": 2},
		map[uint8]string{1: "x"},
		simple{N: -1, B: true},
		nested{Y: 9, S: simple{N: 3, B: false}},
		withDynamic{Name: "n", Count: 4, Tags: []string{"t1", "t2"}},
		[]simple{{N: 1}, {N: 2, B: true}},
		ptr(uint32(9)),
		(*string)(nil),
		ptr("deref"),
		[]*uint32{ptr(uint32(1)), nil, ptr(uint32(3))},
		Box{Value: uint32(5)},
		struct{ V any }{V: "inner"},
		struct{}{},
	}

	for _, in := range tests {
		v, err := Marshal(in)
		if err != nil {
			t.Errorf("Marshal(%#v): %v", in, err)
			continue
		}
		out := reflect.New(reflect.TypeOf(in))
		if err := Unmarshal(v, out.Interface()); err != nil {
			t.Errorf("Unmarshal(%#v): %v", in, err)
			continue
		}
		if diff := cmp.Diff(in, out.Elem().Interface()); diff != "" {
			t.Errorf("round trip of %#v differs (-in+out):\n%s", in, diff)
		}
	}
}

func TestMarshalRoundTripScattered(t *testing.T) {
	in := withDynamic{Name: "scattered", Count: 99, Tags: []string{"one", "two", "three"}}
	v, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var buf bytes.Buffer
	for _, s := range v.Spans() {
		buf.Write(s)
	}
	data := buf.Bytes()

	// Rewrap one byte per span; values cross span boundaries and the
	// codec must still never fault. Then re-check with intact spans.
	shards := make([][]byte, len(data))
	for i := range data {
		shards[i] = data[i : i+1]
	}
	sv, err := NewFromSpans("(suas)", shards...)
	if err != nil {
		t.Fatalf("NewFromSpans: %v", err)
	}
	var junk withDynamic
	Unmarshal(sv, &junk)

	whole, err := NewFromSpans("(suas)", data)
	if err != nil {
		t.Fatalf("NewFromSpans: %v", err)
	}
	var out withDynamic
	if err := Unmarshal(whole, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip differs (-in+out):\n%s", diff)
	}
}

func TestUnmarshalAny(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{uint32(5), uint32(5)},
		{"s", "s"},
		{[]uint32{1, 2}, []any{uint32(1), uint32(2)}},
		{simple{N: 1, B: true}, []any{int16(1), true}},
		{map[string]uint32{"k": 9}, map[any]any{"k": uint32(9)}},
		{ptr(uint32(3)), value.Just[any](uint32(3))},
		{(*uint32)(nil), value.Absent[any]()},
		{Box{Value: uint32(8)}, uint32(8)},
	}

	for _, tc := range tests {
		v, err := Marshal(tc.in)
		if err != nil {
			t.Fatalf("Marshal(%#v): %v", tc.in, err)
		}
		var out any
		if err := Unmarshal(v, &out); err != nil {
			t.Fatalf("Unmarshal(%#v): %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, out, cmp.AllowUnexported(value.Maybe[any]{})); diff != "" {
			t.Errorf("Unmarshal(%#v) differs (-want+got):\n%s", tc.in, diff)
		}
	}
}

func TestUnmarshalIntoBox(t *testing.T) {
	v, err := Marshal(Box{Value: uint32(8)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var b Box
	if err := Unmarshal(v, &b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got, ok := b.Value.(uint32); !ok || got != 8 {
		t.Errorf("Box.Value = %#v, want uint32(8)", b.Value)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	v, err := Marshal(uint32(5))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var u uint32
	if err := Unmarshal(v, u); err == nil {
		t.Error("Unmarshal(non-pointer) got nil err")
	}
	if err := Unmarshal(v, (*uint32)(nil)); err == nil {
		t.Error("Unmarshal(nil pointer) got nil err")
	}
	var s string
	if err := Unmarshal(v, &s); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Unmarshal into wrong type got err %v, want %v", err, ErrTypeMismatch)
	}

	// The shape mismatch poisons the variant, but it stays usable.
	if err := Unmarshal(v, &u); err != nil {
		t.Fatalf("Unmarshal after error: %v", err)
	}
	if u != 5 {
		t.Errorf("u = %d, want 5", u)
	}
}

func TestMarshalUnrepresentable(t *testing.T) {
	for _, in := range []any{int(1), float32(1), map[simple]bool{}, make(chan int), value.Just(uint32(1))} {
		if _, err := Marshal(in); err == nil {
			t.Errorf("Marshal(%T) got nil err, want TypeError", in)
		} else {
			var te TypeError
			if !errors.As(err, &te) {
				t.Errorf("Marshal(%T) err = %v, want TypeError", in, err)
			}
		}
	}
}

// value.Maybe cannot be built through reflection, so the typed codec
// must refuse it everywhere rather than serialize it as an empty
// struct. The pointer mapping is the typed way to a maybe; the
// generic decode path is where value.Maybe appears.
func TestMaybeTargetsRejected(t *testing.T) {
	var te TypeError

	if _, err := SignatureOf(value.Just(uint32(7))); !errors.As(err, &te) {
		t.Errorf("SignatureOf(value.Maybe) got err %v, want TypeError", err)
	}
	if _, err := SignatureFor[value.Maybe[string]](); !errors.As(err, &te) {
		t.Errorf("SignatureFor[value.Maybe] got err %v, want TypeError", err)
	}

	// Nested in a struct field.
	type holder struct {
		M value.Maybe[uint32]
	}
	if _, err := Marshal(holder{M: value.Just(uint32(7))}); !errors.As(err, &te) {
		t.Errorf("Marshal(struct with value.Maybe field) got err %v, want TypeError", err)
	}

	// As a boxed payload.
	if _, err := Marshal(Box{Value: value.Just(uint32(7))}); !errors.As(err, &te) {
		t.Errorf("Marshal(Box holding value.Maybe) got err %v, want TypeError", err)
	}

	// As an unmarshal target.
	v, err := Marshal(ptr(uint32(7)))
	if err != nil {
		t.Fatalf("Marshal(*uint32): %v", err)
	}
	var m value.Maybe[uint32]
	if err := Unmarshal(v, &m); !errors.As(err, &te) {
		t.Errorf("Unmarshal into value.Maybe got err %v, want TypeError", err)
	}

	// The same wire value round-trips through the pointer mapping,
	// and decodes generically as a value.Maybe[any].
	var p *uint32
	if err := Unmarshal(v, &p); err != nil {
		t.Fatalf("Unmarshal into *uint32: %v", err)
	}
	if p == nil || *p != 7 {
		t.Errorf("pointer round trip = %v", p)
	}
	var out any
	if err := Unmarshal(v, &out); err != nil {
		t.Fatalf("Unmarshal into any: %v", err)
	}
	if diff := cmp.Diff(value.Just[any](uint32(7)), out, cmp.AllowUnexported(value.Maybe[any]{})); diff != "" {
		t.Errorf("generic decode differs (-want+got):\n%s", diff)
	}
}

func TestNamedTypes(t *testing.T) {
	type port uint16
	type host string
	type endpoint struct {
		Host host
		Port port
	}

	in := endpoint{Host: "example", Port: 443}
	sig, err := SignatureOf(in)
	if err != nil {
		t.Fatalf("SignatureOf: %v", err)
	}
	if sig != "(sq)" {
		t.Fatalf("SignatureOf = %q, want (sq)", sig)
	}

	v, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out endpoint
	if err := Unmarshal(v, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %#v, want %#v", out, in)
	}
}
