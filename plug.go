package plugraph

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Direction tells whether a plug is an input of its node or one of the outputs
// the node computes.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Plug is a typed value cell owned by a Node. Input plugs hold a value set by
// the user (or receive one through an input connection); output plugs are
// computed on demand by their node.
//
// Plug is implemented by *ValuePlug[T] only; use the typed handle to read and
// write values.
type Plug interface {
	// Name is the plug's name within its node, e.g. "out.format".
	Name() string
	// FullName is the node name and plug name joined by a dot.
	FullName() string
	Node() Node
	Direction() Direction
	// Type is the Go type of the plug's values.
	Type() reflect.Type
	// Input is the plug this one receives its value from, or nil.
	Input() Plug
	// Outputs are the plugs receiving their value from this one.
	Outputs() []Plug
	// IsDirty reports whether the plug has been invalidated since it was last
	// evaluated.
	IsDirty() bool

	base() *plugBase
	storedValue() any
	setStoredValue(v any) error
}

// plugIDs hands out process-wide plug identities; the cache keys entries by plug
// identity, and a Cache may be shared by several graphs.
var plugIDs atomic.Uint64

type plugBase struct {
	owner *NodeBase
	name  string
	dir   Direction
	typ   reflect.Type
	id    uint64

	// input and outputs are only modified by edits, which exclude evaluation (see
	// Graph.Apply), hence reading them during evaluation needs no locking.
	input   Plug
	outputs []Plug

	// dirtyCount takes part in the hash cache key: bumping it invalidates every
	// hash cached for this plug, under every context.
	dirtyCount atomic.Uint64
	dirty      atomic.Bool

	// valueHash is the hash of the stored (or default) value, maintained on every
	// set so that reading an input's hash never re-hashes its value.
	valueHash Hash
}

func (p *plugBase) Name() string {
	return p.name
}

func (p *plugBase) FullName() string {
	if p.owner == nil || p.owner.name == "" {
		return p.name
	}
	return p.owner.name + "." + p.name
}

func (p *plugBase) Node() Node {
	if p.owner == nil {
		return nil
	}
	return p.owner.self
}

func (p *plugBase) Direction() Direction { return p.dir }
func (p *plugBase) Type() reflect.Type   { return p.typ }
func (p *plugBase) Input() Plug          { return p.input }
func (p *plugBase) IsDirty() bool        { return p.dirty.Load() }

func (p *plugBase) Outputs() []Plug {
	outputs := make([]Plug, len(p.outputs))
	copy(outputs, p.outputs)
	return outputs
}

func (p *plugBase) base() *plugBase { return p }

func (p *plugBase) graph() *Graph {
	if p.owner == nil {
		return nil
	}
	return p.owner.graph
}

func (p *plugBase) markDirty() {
	p.dirtyCount.Add(1)
	p.dirty.Store(true)
}

// ValuePlug is a Plug holding values of type T.
//
// The zero value is not usable; create plugs with NewPlug while constructing a
// node.
type ValuePlug[T any] struct {
	plugBase
	defaultValue T
	value        T
	hasValue     bool
}

// NewPlug creates a plug named name on the node embedding b, holding def until
// another value is set (inputs) or computed (outputs). Plugs are listed by
// NodeBase.Plugs in creation order.
//
// NewPlug panics if name is already taken on the node, or if def cannot be
// hashed by ValueHash.
func NewPlug[T any](b *NodeBase, name string, dir Direction, def T) *ValuePlug[T] {
	p := &ValuePlug[T]{defaultValue: def}
	p.owner = b
	p.name = name
	p.dir = dir
	p.typ = reflect.TypeFor[T]()
	p.id = plugIDs.Add(1)
	p.valueHash = MustValueHash(def)
	b.addPlug(p)
	return p
}

// Default returns the plug's default value.
func (p *ValuePlug[T]) Default() T {
	return p.defaultValue
}

// Value evaluates the plug under ec. Outputs are computed by their node (or
// served from the cache); inputs return their stored value, or the value of
// their input connection.
//
// The node owning p must be part of a Graph.
func (p *ValuePlug[T]) Value(ctx context.Context, ec *Context) (T, error) {
	var zero T
	g := p.graph()
	if g == nil {
		return zero, fmt.Errorf("value %s: %w", p.FullName(), ErrDetached)
	}
	v, err := g.Evaluate(ctx, p, ec)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("value %s: got %T, want %s: %w", p.FullName(), v, p.typ, ErrTypeMismatch)
	}
	return t, nil
}

// Hash returns the hash of the plug's value under ec without computing that
// value.
func (p *ValuePlug[T]) Hash(ctx context.Context, ec *Context) (Hash, error) {
	g := p.graph()
	if g == nil {
		return Hash{}, fmt.Errorf("hash %s: %w", p.FullName(), ErrDetached)
	}
	return g.HashOf(ctx, p, ec)
}

// SetValue stores v on an input plug and invalidates everything downstream.
//
// When the node is not part of a Graph yet, the value is simply stored; this is
// how nodes are configured before being added.
func (p *ValuePlug[T]) SetValue(v T) error {
	g := p.graph()
	if g == nil {
		return p.setStoredValue(v)
	}
	_, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		return w.SetValue(p, v)
	})
	return err
}

// SetInput connects src to p, so that p receives its values from src. A nil src
// disconnects p.
func (p *ValuePlug[T]) SetInput(src Plug) error {
	g := p.graph()
	if g == nil {
		if src != nil && src.base().graph() != nil {
			return fmt.Errorf("connect %s: %w", p.FullName(), ErrDetached)
		}
		if src == nil {
			disconnect(p)
			return nil
		}
		return connect(p, src)
	}
	_, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		if src == nil {
			return w.Disconnect(p)
		}
		return w.Connect(p, src)
	})
	return err
}

func (p *ValuePlug[T]) storedValue() any {
	if p.hasValue {
		return p.value
	}
	return p.defaultValue
}

func (p *ValuePlug[T]) setStoredValue(v any) error {
	switch {
	case p.dir == Out:
		return fmt.Errorf("set %s: %w", p.FullName(), ErrReadOnly)
	case p.input != nil:
		return fmt.Errorf("set %s: %w", p.FullName(), ErrConnected)
	}
	var t T
	if v != nil {
		var ok bool
		if t, ok = v.(T); !ok {
			return fmt.Errorf("set %s: got %T, want %s: %w", p.FullName(), v, p.typ, ErrTypeMismatch)
		}
	}
	h, err := ValueHash(t)
	if err != nil {
		return fmt.Errorf("set %s: %w", p.FullName(), err)
	}
	p.value, p.hasValue, p.valueHash = t, true, h
	return nil
}

func (p *ValuePlug[T]) String() string {
	return p.FullName()
}
