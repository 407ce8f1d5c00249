package plugraph

import (
	"encoding/gob"
	"maps"
)

func init() {
	gob.Register(CompoundObject{})
	gob.Register([]any{})
}

// CompoundObject is a string-keyed bag of values, used for attributes, globals
// and metadata.
//
// Plug values are shared between every reader of a cached evaluation, so a
// CompoundObject obtained from a plug must never be modified in place; use
// Clone to derive a new one.
type CompoundObject map[string]any

// Clone returns a shallow copy of o. The clone of a nil object is an empty,
// non-nil object.
func (o CompoundObject) Clone() CompoundObject {
	c := make(CompoundObject, len(o))
	maps.Copy(c, o)
	return c
}
