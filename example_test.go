package gvariant_test

import (
	"fmt"

	"github.com/danderson/gvariant"
)

func ExampleVariant() {
	v, err := gvariant.New("(sau)")
	if err != nil {
		panic(err)
	}
	if err := v.Write("(sau)", "totals", 3, uint32(10), uint32(20), uint32(30)); err != nil {
		panic(err)
	}
	if err := v.Seal(); err != nil {
		panic(err)
	}

	var (
		name    string
		a, b, c uint32
	)
	if err := v.Read("(sau)", &name, 3, &a, &b, &c); err != nil {
		panic(err)
	}
	fmt.Println(name, a, b, c)
	// Output: totals 10 20 30
}

func ExampleUnmarshal() {
	type record struct {
		Name  string
		Count uint32
	}

	v, err := gvariant.Marshal(record{Name: "widgets", Count: 42})
	if err != nil {
		panic(err)
	}

	var out record
	if err := gvariant.Unmarshal(v, &out); err != nil {
		panic(err)
	}
	fmt.Printf("%s: %d\n", out.Name, out.Count)
	// Output: widgets: 42
}

func ExampleVariant_Enter() {
	// Wire bytes for "as": ["go", "variant"], two strings followed
	// by their framing offsets.
	data := []byte{'g', 'o', 0, 'v', 'a', 'r', 'i', 'a', 'n', 't', 0, 3, 11}

	v, err := gvariant.NewFromSpans("as", data)
	if err != nil {
		panic(err)
	}
	if err := v.Enter("a"); err != nil {
		panic(err)
	}
	for v.PeekCount() > 0 {
		var s string
		if err := v.Read("s", &s); err != nil {
			panic(err)
		}
		fmt.Println(s)
	}
	// Output:
	// go
	// variant
}
