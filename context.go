package plugraph

import (
	"crypto/sha1"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// FrameKey is the well-known context key holding the current frame.
const FrameKey = "frame"

// A Context is an immutable set of named variables under which plugs are
// evaluated. The same plug evaluated under two contexts may produce two
// different values; for example, a scene plug produces a different bound for
// every location named by the "scene:path" variable.
//
// Contexts are values: derive new ones with With and Without. Every Context
// carries its own Hash, computed once on construction, which takes part in every
// plug hash evaluated under it.
//
// The nil *Context is valid and behaves as an empty Context.
type Context struct {
	keys   []string // sorted
	values map[string]any
	hash   Hash
}

// NewContext returns a Context holding only the default frame, 1.
func NewContext() *Context {
	return (*Context)(nil).With(FrameKey, 1.0)
}

// With returns a copy of c in which key is bound to v. Values must be hashable
// by ValueHash; With panics otherwise.
func (c *Context) With(key string, v any) *Context {
	n := &Context{values: make(map[string]any, c.Len()+1)}
	for _, k := range c.Keys() {
		n.values[k] = c.values[k]
	}
	n.values[key] = v
	n.rehash()
	return n
}

// Without returns a copy of c in which key is unbound. It returns c itself when
// key was not bound.
func (c *Context) Without(keys ...string) *Context {
	if !slices.ContainsFunc(keys, c.Has) {
		return c
	}
	n := &Context{values: make(map[string]any, c.Len())}
	for _, k := range c.Keys() {
		if !slices.Contains(keys, k) {
			n.values[k] = c.values[k]
		}
	}
	n.rehash()
	return n
}

func (c *Context) rehash() {
	c.keys = make([]string, 0, len(c.values))
	for k := range c.values {
		c.keys = append(c.keys, k)
	}
	slices.Sort(c.keys)

	h := sha1.New()
	for _, k := range c.keys {
		writeString(h, k)
		x := MustValueHash(c.values[k])
		h.Write(x[:])
	}
	c.hash = Hash(h.Sum(nil))
}

// Get returns the value bound to key.
func (c *Context) Get(key string) (v any, ok bool) {
	if c == nil {
		return nil, false
	}
	v, ok = c.values[key]
	return v, ok
}

// Has reports whether key is bound in c.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the bound keys in sorted order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.keys)
}

// Len returns the number of bound keys.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Hash returns the content hash of c. Two contexts binding equal values to the
// same keys have equal hashes.
func (c *Context) Hash() Hash {
	if c == nil {
		return emptyContextHash
	}
	return c.hash
}

var emptyContextHash = Hash(sha1.New().Sum(nil))

// Equal reports whether c and o bind equal values to the same keys.
func (c *Context) Equal(o *Context) bool {
	return c.Hash() == o.Hash()
}

// Frame returns the current frame, or 1 if c does not bind one.
func (c *Context) Frame() float64 {
	f, err := ContextValue[float64](c, FrameKey)
	if err != nil {
		return 1
	}
	return f
}

func (c *Context) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range c.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, c.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// MissingContextKeyError is returned by ContextValue when the key is unbound or
// bound to a value of another type.
type MissingContextKeyError struct {
	Key  string
	Want reflect.Type
	// Got is the bound value, or nil if Key is unbound.
	Got any
}

func (e *MissingContextKeyError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("context key %q: not bound", e.Key)
	}
	return fmt.Sprintf("context key %q: bound to %T, want %s", e.Key, e.Got, e.Want)
}

// ContextValue returns the value bound to key in c as a T.
func ContextValue[T any](c *Context, key string) (T, error) {
	v, ok := c.Get(key)
	if t, isT := v.(T); ok && isT {
		return t, nil
	}
	var zero T
	return zero, &MissingContextKeyError{Key: key, Want: reflect.TypeFor[T](), Got: v}
}
