package gvariant

import (
	"errors"
	"strings"
	"testing"
)

func TestNextType(t *testing.T) {
	tests := []struct {
		in    string
		align int // in bytes
		size  int
		bound int
		depth int
		typ   string
	}{
		{"b", 1, 1, 0, 0, "b"},
		{"y", 1, 1, 0, 0, "y"},
		{"n", 2, 2, 0, 0, "n"},
		{"q", 2, 2, 0, 0, "q"},
		{"i", 4, 4, 0, 0, "i"},
		{"u", 4, 4, 0, 0, "u"},
		{"x", 8, 8, 0, 0, "x"},
		{"t", 8, 8, 0, 0, "t"},
		{"h", 4, 4, 0, 0, "h"},
		{"d", 8, 8, 0, 0, "d"},
		{"s", 1, 0, 0, 0, "s"},
		{"o", 1, 0, 0, 0, "o"},
		{"g", 1, 0, 0, 0, "g"},
		{"v", 8, 0, 0, 0, "v"},

		{"()", 1, 1, 0, 1, "()"},
		{"(u)", 4, 4, 0, 1, "(u)"},
		{"(uu)", 4, 8, 0, 1, "(uu)"},
		{"(yu)", 4, 8, 0, 1, "(yu)"},
		{"(uy)", 4, 8, 0, 1, "(uy)"},
		{"(yyy)", 1, 3, 0, 1, "(yyy)"},
		{"(yxy)", 8, 24, 0, 1, "(yxy)"},
		{"(us)", 4, 0, 0, 1, "(us)"},
		{"((yy)y)", 1, 3, 0, 2, "((yy)y)"},
		{"((yx)y)", 8, 24, 0, 2, "((yx)y)"},

		{"ay", 1, 0, 1, 1, "ay"},
		{"au", 4, 0, 4, 1, "au"},
		{"ax", 8, 0, 8, 1, "ax"},
		{"as", 1, 0, 0, 1, "as"},
		{"a(uu)", 4, 0, 8, 2, "a(uu)"},
		{"aau", 4, 0, 0, 2, "aau"},
		{"a{su}", 4, 0, 0, 2, "a{su}"},
		{"a{yy}", 1, 0, 2, 2, "a{yy}"},

		{"my", 1, 0, 1, 1, "my"},
		{"ms", 1, 0, 0, 1, "ms"},
		{"mmu", 4, 0, 0, 2, "mmu"},
		{"m(s)", 1, 0, 0, 2, "m(s)"},

		{"{yu}", 4, 8, 0, 1, "{yu}"},
		{"{sv}", 8, 0, 0, 1, "{sv}"},

		// Multi-type signatures consume exactly one type.
		{"uu", 4, 4, 0, 0, "u"},
		{"(uu)s", 4, 8, 0, 1, "(uu)"},
		{"ayay", 1, 0, 1, 1, "ay"},
	}

	for _, tc := range tests {
		info, err := NextType(tc.in)
		if err != nil {
			t.Errorf("NextType(%q) got err %v", tc.in, err)
			continue
		}
		if got := 1 << info.Alignment; got != tc.align {
			t.Errorf("NextType(%q) alignment = %d, want %d", tc.in, got, tc.align)
		}
		if info.Size != tc.size {
			t.Errorf("NextType(%q) size = %d, want %d", tc.in, info.Size, tc.size)
		}
		if info.BoundSize != tc.bound {
			t.Errorf("NextType(%q) bound size = %d, want %d", tc.in, info.BoundSize, tc.bound)
		}
		if info.Depth != tc.depth {
			t.Errorf("NextType(%q) depth = %d, want %d", tc.in, info.Depth, tc.depth)
		}
		if info.Type != tc.typ {
			t.Errorf("NextType(%q) consumed %q, want %q", tc.in, info.Type, tc.typ)
		}
	}
}

func TestNextTypeErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"z", ErrBadType},
		{"r", ErrBadType},
		{"e", ErrBadType},
		{"?", ErrBadType},
		{"*", ErrBadType},
		{" u", ErrBadType},
		{"(", ErrBadType},
		{")", ErrBadType},
		{"(u", ErrBadType},
		{"}", ErrBadType},
		{"{u}", ErrBadType},
		{"{uuu}", ErrBadType},
		{"{vu}", ErrBadType},
		{"{(y)u}", ErrBadType},
		{"{ayu}", ErrBadType},
		{"a", ErrBadType},
		{"m", ErrBadType},
		{"a)", ErrBadType},
		{"(})", ErrBadType},
		{"(u})", ErrBadType},
		{strings.Repeat("a", MaxSignature+1) + "u", ErrSignatureLen},
		{strings.Repeat("(", 300) + "u" + strings.Repeat(")", 300), ErrDepth},
	}

	for _, tc := range tests {
		_, err := NextType(tc.in)
		if !errors.Is(err, tc.want) {
			t.Errorf("NextType(%q) got err %v, want %v", tc.in, err, tc.want)
		}
	}

	// A trailing bracket after a complete type is fine for NextType,
	// but not for ParseType.
	if _, err := NextType("u)"); err != nil {
		t.Errorf(`NextType("u)") got err %v, want nil`, err)
	}
	if _, err := ParseType("u)"); !errors.Is(err, ErrBadType) {
		t.Errorf(`ParseType("u)") got err %v, want %v`, err, ErrBadType)
	}
}

func TestNextTypeEmpty(t *testing.T) {
	info, err := NextType("")
	if err != nil {
		t.Fatalf(`NextType("") got err %v`, err)
	}
	if len(info.Type) != 0 {
		t.Fatalf(`NextType("") consumed %q, want nothing`, info.Type)
	}
}

// A signature is covered exactly by repeatedly taking the leading
// type: the reported spans abut and reconstruct the input.
func TestSignatureCover(t *testing.T) {
	sigs := []string{
		"u",
		"uu",
		"uby(nq)a{sv}mdax",
		"(((((s)))))a(uu)v",
		"a{s(aya{uv})}mmmu",
	}
	for _, sig := range sigs {
		var parts []string
		rest := sig
		for rest != "" {
			info, err := NextType(rest)
			if err != nil {
				t.Fatalf("NextType(%q) (walking %q): %v", rest, sig, err)
			}
			parts = append(parts, info.Type)
			rest = rest[len(info.Type):]
		}
		if got := strings.Join(parts, ""); got != sig {
			t.Errorf("walking %q reconstructed %q", sig, got)
		}
	}
}

func TestParseType(t *testing.T) {
	if _, err := ParseType("(uu)"); err != nil {
		t.Errorf(`ParseType("(uu)") got err %v`, err)
	}
	for _, bad := range []string{"", "uu", "(uu)u", "z"} {
		if _, err := ParseType(bad); err == nil {
			t.Errorf("ParseType(%q) got nil err, want error", bad)
		}
	}
}

func TestNestingAtLimit(t *testing.T) {
	// Exactly MaxDepth nested arrays parse; one more does not.
	ok := strings.Repeat("a", MaxDepth) + "y"
	if _, err := NextType(ok); err != nil {
		t.Errorf("NextType(%d-deep) got err %v", MaxDepth, err)
	}
	bad := strings.Repeat("a", MaxDepth+1) + "y"
	if _, err := NextType(bad); !errors.Is(err, ErrDepth) {
		t.Errorf("NextType(%d-deep) got err %v, want %v", MaxDepth+1, err, ErrDepth)
	}
}
