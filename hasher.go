package plugraph

import (
	"crypto/sha1"
	"encoding/binary"
	"hash"
	"math"
	"unsafe"
)

// A Hasher accumulates the inputs of a plug hash. Nodes receive a Hasher in
// NodeHasher.Hash and feed it everything their Compute reads.
//
// A Hasher may also adopt another plug's hash wholesale with Assign, which is
// how pass-through outputs share the hash (and thus the cache entry) of their
// upstream plug.
//
// The zero value is ready to use.
// Do not copy a non-zero Hasher.
type Hasher struct {
	digest hash.Hash
	// assigned is set by Assign and adopted as the final hash, unless more data
	// is written afterwards.
	assigned *Hash
	// address of receiver - to detect copies by value.
	// see copyCheck below for details.
	addr *Hasher
}

// Sum returns the accumulated Hash. It does not change the underlying state, so
// more data may be written after a call to Sum.
func (h *Hasher) Sum() Hash {
	if h.assigned != nil {
		return *h.assigned
	}
	if h.digest == nil {
		return Hash(sha1.New().Sum(nil))
	}
	return Hash(h.digest.Sum(nil))
}

// Reset resets the Hasher to be empty.
func (h *Hasher) Reset() {
	h.digest = nil
	h.assigned = nil
	h.addr = nil
}

// Assign discards everything accumulated so far and adopts x as the hash. If
// nothing else is written, Sum returns exactly x.
func (h *Hasher) Assign(x Hash) {
	h.copyCheck()
	h.digest = nil
	h.assigned = &x
}

// Write appends p to the hash. It always returns len(p), nil.
func (h *Hasher) Write(p []byte) (int, error) {
	h.state().Write(p)
	return len(p), nil
}

// WriteString appends the length-prefixed s to the hash.
func (h *Hasher) WriteString(s string) {
	writeString(h.state(), s)
}

// WriteInt appends i to the hash.
func (h *Hasher) WriteInt(i int64) {
	buf := make([]byte, binary.MaxVarintLen64)
	h.state().Write(buf[:binary.PutVarint(buf, i)])
}

// WriteFloat appends f to the hash.
func (h *Hasher) WriteFloat(f float64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	h.state().Write(buf[:])
}

// WriteBool appends b to the hash.
func (h *Hasher) WriteBool(b bool) {
	if b {
		h.state().Write([]byte{1})
	} else {
		h.state().Write([]byte{0})
	}
}

// WriteHash appends another hash, typically an upstream plug's, to the hash.
func (h *Hasher) WriteHash(x Hash) {
	h.state().Write(x[:])
}

// WriteValue appends the ValueHash of v to the hash.
func (h *Hasher) WriteValue(v any) error {
	x, err := ValueHash(v)
	if err != nil {
		return err
	}
	h.WriteHash(x)
	return nil
}

// state returns the digest to write into, folding in an assigned hash first.
func (h *Hasher) state() hash.Hash {
	h.copyCheck()
	if h.digest == nil {
		h.digest = sha1.New()
		if h.assigned != nil {
			h.digest.Write(h.assigned[:])
		}
	}
	h.assigned = nil
	return h.digest
}

// noescape hides a pointer from escape analysis. It is the identity function
// but escape analysis doesn't think the output depends on the input.
// noescape is inlined and currently compiles down to zero instructions.
// USE CAREFULLY!
// This was copied from the runtime (via pkg "strings"); see issues 23382 and 7921.
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0) //nolint:govet,staticcheck,gosec // copied from the standard library
}

func (h *Hasher) copyCheck() {
	if h.addr == nil {
		// This hack works around a failing of Go's escape analysis
		// that was causing h to escape and be heap-allocated.
		// See issue 23382 (github.com/golang/go).
		// once issue 7921 is fixed, this should be reverted to just "h.addr = h".
		h.addr = (*Hasher)(noescape(unsafe.Pointer(h)))
	} else if h.addr != h {
		panic("plugraph: illegal use of non-zero Hasher copied by value")
	}
}
