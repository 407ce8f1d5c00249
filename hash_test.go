package plugraph

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"reflect"
	"testing"
)

func TestValueHash(t *testing.T) {
	// ValueHash should return different hashes for
	// different types of values.
	type (
		SomeValue struct {
			V string
		}
		OtherValue struct {
			V string
		}
		CompositeValue struct {
			Inner any // either SomeValue or OtherValue
		}
	)

	tests := []struct {
		Name        string
		Left, Right any
		Equals      bool
	}{
		{
			Name:   "types=same,values=same",
			Left:   SomeValue{V: "left"},
			Right:  SomeValue{V: "left"},
			Equals: true,
		},
		{
			Name:   "types=same,values=different",
			Left:   SomeValue{V: "left"},
			Right:  SomeValue{V: "right"},
			Equals: false,
		},
		{
			Name:   "types=different,values=same",
			Left:   SomeValue{V: "left"},
			Right:  OtherValue{V: "left"},
			Equals: false,
		},
		{
			Name:   "EmbeddedInterface",
			Left:   CompositeValue{Inner: SomeValue{V: "same"}},
			Right:  CompositeValue{Inner: OtherValue{V: "same"}},
			Equals: false,
		},
		{
			Name:   "IntAndFloat",
			Left:   1,
			Right:  1.0,
			Equals: false,
		},
		{
			Name:   "StringBoundaries",
			Left:   []string{"ab"},
			Right:  []string{"a", "b"},
			Equals: false,
		},
		{
			Name:   "NilAndEmptySlice",
			Left:   []int(nil),
			Right:  []int{},
			Equals: false,
		},
		{
			Name:   "MapOrder",
			Left:   map[string]any{"a": 1, "b": "two", "c": 3.0},
			Right:  map[string]any{"c": 3.0, "b": "two", "a": 1},
			Equals: true,
		},
		{
			Name:   "MapValues",
			Left:   CompoundObject{"a": 1},
			Right:  CompoundObject{"a": 2},
			Equals: false,
		},
		{
			Name:   "NilPointerAndZero",
			Left:   (*int)(nil),
			Right:  new(int),
			Equals: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			l, err := ValueHash(tt.Left)
			if err != nil {
				t.Fatalf("ValueHash(%#v): %v", tt.Left, err)
			}
			r, err := ValueHash(tt.Right)
			if err != nil {
				t.Fatalf("ValueHash(%#v): %v", tt.Right, err)
			}
			if (l == r) != tt.Equals {
				t.Errorf("ValueHash(%#v) == ValueHash(%#v) = %v, want %v", tt.Left, tt.Right, l == r, tt.Equals)
			}
		})
	}
}

// ValueHash should produce the same contents hash regardless of the order of the
// fields in a struct.
//
// for this test we call writeContents directly to avoid the type preamble that
// writeValue adds.
func TestValueHash_reflectionOrder(t *testing.T) {
	type (
		someOrder struct {
			A int
			B int
			C int
		}
		otherOrder struct {
			C int
			A int
			B int
		}
	)

	hash := func(v any) string {
		t.Helper()
		digest := sha1.New()
		if err := writeContents(digest, reflect.ValueOf(v)); err != nil {
			t.Fatalf("writeContents(%#v): %v", v, err)
		}
		return hex.EncodeToString(digest.Sum(nil))
	}

	if l, r := hash(someOrder{A: 1, B: 2, C: 3}), hash(otherOrder{A: 1, B: 2, C: 3}); l != r {
		t.Errorf("hash(someOrder) != hash(otherOrder): %v != %v", l, r)
	}
}

func TestValueHash_unsupported(t *testing.T) {
	if _, err := ValueHash(make(chan int)); err == nil {
		t.Errorf("ValueHash(chan) succeeded, want error")
	}
	type withFunc struct{ F func() }
	if _, err := ValueHash(withFunc{F: func() {}}); err == nil {
		t.Errorf("ValueHash(func field) succeeded, want error")
	}
}

type addressed struct {
	id    byte
	noise int // ignored by ContentAddress
}

func (a addressed) ContentAddress(h hash.Hash) error {
	h.Write([]byte{a.id})
	return nil
}

func TestValueHash_contentAddresser(t *testing.T) {
	l := MustValueHash(addressed{id: 1, noise: 1})
	r := MustValueHash(addressed{id: 1, noise: 2})
	if l != r {
		t.Errorf("ValueHash ignored ContentAddress: %v != %v", l, r)
	}
	if MustValueHash(addressed{id: 2}) == l {
		t.Errorf("ValueHash(id=2) == ValueHash(id=1)")
	}
}

func TestHashText(t *testing.T) {
	want := MustValueHash("some value")
	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != want.String() {
		t.Errorf("MarshalText = %s, String = %s", text, want)
	}
	var got Hash
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%s): %v", text, err)
	}
	if got != want {
		t.Errorf("UnmarshalText(%s) = %v, want %v", text, got, want)
	}
	if err := got.UnmarshalText(text[:10]); err == nil {
		t.Errorf("UnmarshalText(short) succeeded, want error")
	}
	if got := (Hash{}); !got.IsZero() {
		t.Errorf("Hash{}.IsZero() = false")
	}
}
