// Package scene evaluates hierarchical scenes with plugraph.
//
// A scene is not a single value but a family of values, one per location of a
// hierarchy: every location has a bound, a transform, attributes, an optional
// object and the names of its children. A scene Plug gathers the plugs holding
// these, and its queries evaluate them under a context naming the location (see
// PathKey). Locations are never materialised: a node computes the value for
// whatever location it is asked about, and the cache keeps the answers.
//
// Nodes producing scenes embed NodeBase and implement Computer.
package scene

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// Plug gathers the plugs making up a scene. It is created with NewPlug and used
// by value.
type Plug struct {
	BoundPlug      *plugraph.ValuePlug[geom.Box3f]
	TransformPlug  *plugraph.ValuePlug[geom.M44f]
	AttributesPlug *plugraph.ValuePlug[plugraph.CompoundObject]
	ObjectPlug     *plugraph.ValuePlug[Object]
	ChildNamesPlug *plugraph.ValuePlug[[]string]
	// GlobalsPlug does not vary per location.
	GlobalsPlug *plugraph.ValuePlug[plugraph.CompoundObject]
}

// NewPlug creates the plugs of a scene on the node embedding b. They are named
// after name, e.g. "out.bound".
func NewPlug(b *plugraph.NodeBase, name string, dir plugraph.Direction) Plug {
	return Plug{
		BoundPlug:      plugraph.NewPlug(b, name+".bound", dir, geom.EmptyBox3f()),
		TransformPlug:  plugraph.NewPlug(b, name+".transform", dir, geom.Identity()),
		AttributesPlug: plugraph.NewPlug[plugraph.CompoundObject](b, name+".attributes", dir, nil),
		ObjectPlug:     plugraph.NewPlug[Object](b, name+".object", dir, nil),
		ChildNamesPlug: plugraph.NewPlug[[]string](b, name+".childNames", dir, nil),
		GlobalsPlug:    plugraph.NewPlug[plugraph.CompoundObject](b, name+".globals", dir, nil),
	}
}

// Children returns the plugs of the scene, in creation order.
func (p Plug) Children() []plugraph.Plug {
	return []plugraph.Plug{p.BoundPlug, p.TransformPlug, p.AttributesPlug, p.ObjectPlug, p.ChildNamesPlug, p.GlobalsPlug}
}

// Contains reports whether x is one of the plugs of the scene.
func (p Plug) Contains(x plugraph.Plug) bool {
	for _, c := range p.Children() {
		if c == x {
			return true
		}
	}
	return false
}

// Corresponding returns the plug of p playing the same role as x does in o, or
// nil if x is not part of o.
func (p Plug) Corresponding(o Plug, x plugraph.Plug) plugraph.Plug {
	mine := p.Children()
	for i, c := range o.Children() {
		if c == x {
			return mine[i]
		}
	}
	return nil
}

// Connect makes every plug of p receive its value from the same plug of src.
func (p Plug) Connect(w plugraph.Writer, src Plug) error {
	theirs := src.Children()
	for i, c := range p.Children() {
		if err := w.Connect(c, theirs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect removes the input connections of every plug of p.
func (p Plug) Disconnect(w plugraph.Writer) error {
	for _, c := range p.Children() {
		if err := w.Disconnect(c); err != nil {
			return err
		}
	}
	return nil
}

// SetInput connects src to p in a single edit, or disconnects p if src is the
// zero Plug. Nodes that are not part of a graph yet are connected directly.
func (p Plug) SetInput(src Plug) error {
	g := graphOf(p.BoundPlug)
	if g == nil {
		theirs := src.Children()
		for i, c := range p.Children() {
			var from plugraph.Plug
			if src.BoundPlug != nil {
				from = theirs[i]
			}
			if err := c.(interface{ SetInput(plugraph.Plug) error }).SetInput(from); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := g.Apply(context.Background(), func(ctx context.Context, w plugraph.Writer) error {
		if src.BoundPlug == nil {
			return p.Disconnect(w)
		}
		return p.Connect(w, src)
	})
	return err
}

func graphOf(p plugraph.Plug) *plugraph.Graph {
	n, ok := p.Node().(interface{ Graph() *plugraph.Graph })
	if !ok {
		return nil
	}
	return n.Graph()
}

// Bound returns the bound of the location at path, in its local space.
func (p Plug) Bound(ctx context.Context, ec *plugraph.Context, path Path) (geom.Box3f, error) {
	return p.BoundPlug.Value(ctx, WithPath(ec, path))
}

// Transform returns the transform of the location at path, relative to its
// parent.
func (p Plug) Transform(ctx context.Context, ec *plugraph.Context, path Path) (geom.M44f, error) {
	return p.TransformPlug.Value(ctx, WithPath(ec, path))
}

func (p Plug) Attributes(ctx context.Context, ec *plugraph.Context, path Path) (plugraph.CompoundObject, error) {
	return p.AttributesPlug.Value(ctx, WithPath(ec, path))
}

// Object returns the object at path, or nil if the location has none.
func (p Plug) Object(ctx context.Context, ec *plugraph.Context, path Path) (Object, error) {
	return p.ObjectPlug.Value(ctx, WithPath(ec, path))
}

func (p Plug) ChildNames(ctx context.Context, ec *plugraph.Context, path Path) ([]string, error) {
	return p.ChildNamesPlug.Value(ctx, WithPath(ec, path))
}

// Globals returns the scene globals. They are evaluated without a location,
// whatever ec holds.
func (p Plug) Globals(ctx context.Context, ec *plugraph.Context) (plugraph.CompoundObject, error) {
	return p.GlobalsPlug.Value(ctx, ec.Without(PathKey))
}

// FullTransform returns the transform from the space of the location at path to
// the space of the root.
func (p Plug) FullTransform(ctx context.Context, ec *plugraph.Context, path Path) (geom.M44f, error) {
	m := geom.Identity()
	for i := len(path); i > 0; i-- {
		t, err := p.Transform(ctx, ec, path[:i])
		if err != nil {
			return geom.M44f{}, err
		}
		m = m.Mul(t)
	}
	return m, nil
}

// Exists reports whether the location at path is part of the scene, that is
// whether every location leading to it lists the next one among its children.
func (p Plug) Exists(ctx context.Context, ec *plugraph.Context, path Path) (bool, error) {
	for i := 0; i < len(path); i++ {
		names, err := p.ChildNames(ctx, ec, path[:i])
		if err != nil {
			return false, fmt.Errorf("child names of %s: %w", path[:i], err)
		}
		if !slices.Contains(names, path[i]) {
			return false, nil
		}
	}
	return true, nil
}
