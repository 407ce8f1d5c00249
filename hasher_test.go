package plugraph

import (
	"testing"
)

// based on stdlib strings/builder_test.go
func TestHasherCopyPanic(t *testing.T) {
	tests := []struct {
		name      string
		fn        func()
		wantPanic bool
	}{
		{
			name:      "Sum",
			wantPanic: false,
			fn: func() {
				var a Hasher
				a.WriteString("x")
				b := a
				_ = b.Sum() // appease vet
			},
		},
		{
			name:      "Reset",
			wantPanic: false,
			fn: func() {
				var a Hasher
				a.WriteString("x")
				b := a
				b.Reset()
				b.WriteString("y")
			},
		},
		{
			name:      "WriteString",
			wantPanic: true,
			fn: func() {
				var a Hasher
				a.WriteString("x")
				b := a
				b.WriteString("y")
			},
		},
		{
			name:      "Assign",
			wantPanic: true,
			fn: func() {
				var a Hasher
				a.WriteInt(1)
				b := a
				b.Assign(Hash{1})
			},
		},
	}
	for _, tt := range tests {
		didPanic := make(chan bool)
		go func() {
			defer func() { didPanic <- recover() != nil }()
			tt.fn()
		}()
		if got := <-didPanic; got != tt.wantPanic {
			t.Errorf("%s: panicked = %v; want %v", tt.name, got, tt.wantPanic)
		}
	}
}

func TestHasherAssign(t *testing.T) {
	upstream := MustValueHash("upstream")

	var h Hasher
	h.WriteString("discarded")
	h.Assign(upstream)
	if got := h.Sum(); got != upstream {
		t.Errorf("Sum() after Assign = %v, want %v", got, upstream)
	}

	// writing after an assignment extends the assigned hash.
	h.WriteBool(true)
	extended := h.Sum()
	if extended == upstream {
		t.Errorf("Sum() after Assign and Write = assigned hash, want a new hash")
	}

	var other Hasher
	other.Assign(upstream)
	other.WriteBool(true)
	if got := other.Sum(); got != extended {
		t.Errorf("Assign+Write is not deterministic: %v != %v", got, extended)
	}
}

func TestHasherWrites(t *testing.T) {
	sum := func(fn func(h *Hasher)) Hash {
		var h Hasher
		fn(&h)
		return h.Sum()
	}
	distinct := []Hash{
		sum(func(h *Hasher) {}),
		sum(func(h *Hasher) { h.WriteInt(1) }),
		sum(func(h *Hasher) { h.WriteInt(2) }),
		sum(func(h *Hasher) { h.WriteFloat(1) }),
		sum(func(h *Hasher) { h.WriteString("1") }),
		sum(func(h *Hasher) { h.WriteBool(false) }),
		sum(func(h *Hasher) { h.WriteHash(Hash{1}) }),
	}
	seen := make(map[Hash]int)
	for i, x := range distinct {
		if j, dup := seen[x]; dup {
			t.Errorf("writes %d and %d produced the same hash %v", j, i, x)
		}
		seen[x] = i
	}
}
