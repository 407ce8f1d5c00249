package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// Group parents the scene of its In plug under a new location "/<name>", with a
// transform of its own.
//
// The locations of the group are read from In at the corresponding path, which
// the default hash knows nothing about; Group hashes its outputs itself.
type Group struct {
	NodeBase
	In            Plug
	NamePlug      *plugraph.ValuePlug[string]
	TransformPlug *plugraph.ValuePlug[geom.M44f]
}

func NewGroup(name string) *Group {
	n := &Group{}
	n.InitSceneNode(n, name)
	n.In = NewPlug(&n.NodeBase.NodeBase, "in", plugraph.In)
	n.NamePlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "name", plugraph.In, "group")
	n.TransformPlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "transform", plugraph.In, geom.Identity())
	if err := n.Out.GlobalsPlug.SetInput(n.In.GlobalsPlug); err != nil {
		panic(err)
	}
	return n
}

func (n *Group) Affects(p plugraph.Plug) []plugraph.Plug {
	switch {
	case p == n.NamePlug:
		return []plugraph.Plug{n.Out.BoundPlug, n.Out.TransformPlug, n.Out.AttributesPlug, n.Out.ObjectPlug, n.Out.ChildNamesPlug}
	case p == n.TransformPlug:
		return []plugraph.Plug{n.Out.BoundPlug, n.Out.TransformPlug}
	case n.In.Contains(p):
		return []plugraph.Plug{n.Out.Corresponding(n.In, p)}
	}
	return nil
}

// source maps path to the location of In it is read from, and reports how deep
// path lies below the root. The root has no source.
func (n *Group) source(ctx context.Context, path Path, ec *plugraph.Context) (src Path, depth int, err error) {
	if path.IsRoot() {
		return nil, 0, nil
	}
	name, err := locationName(ctx, ec, n.NamePlug)
	if err != nil {
		return nil, 0, err
	}
	if path[0] != name {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoSuchLocation, path)
	}
	return path[1:], len(path), nil
}

// Hash implements plugraph.NodeHasher, following the branches of the Compute
// methods.
func (n *Group) Hash(ctx context.Context, output plugraph.Plug, ec *plugraph.Context, h *plugraph.Hasher) error {
	path, err := ContextPath(ec)
	if err != nil {
		return err
	}
	plugraph.AppendPreamble(h, output, ec)
	if err := n.writeHash(ctx, h, ec, n.NamePlug); err != nil {
		return err
	}

	src, depth, err := n.source(ctx, path, ec)
	switch {
	case errors.Is(err, ErrNoSuchLocation):
		// the name alone decides that the location does not exist.
		return nil
	case err != nil:
		return err
	case depth == 0:
		if output == n.Out.BoundPlug {
			if err := n.writeHash(ctx, h, ec, n.TransformPlug); err != nil {
				return err
			}
			return n.writeHash(ctx, h, WithPath(ec, Root), n.In.BoundPlug)
		}
		return nil
	case depth == 1 && output == n.Out.TransformPlug:
		return n.writeHash(ctx, h, ec, n.TransformPlug)
	}
	return n.writeHash(ctx, h, WithPath(ec, src), n.In.Corresponding(n.Out, output))
}

func (n *Group) writeHash(ctx context.Context, h *plugraph.Hasher, ec *plugraph.Context, p plugraph.Plug) error {
	x, err := n.Graph().HashOf(ctx, p, ec)
	if err != nil {
		return err
	}
	h.WriteHash(x)
	return nil
}

func (n *Group) ComputeBound(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.Box3f, error) {
	src, depth, err := n.source(ctx, path, ec)
	if err != nil {
		return geom.Box3f{}, err
	}
	if depth == 0 {
		return UnionOfTransformedChildBounds(ctx, ec, out, path)
	}
	return n.In.Bound(ctx, ec, src)
}

func (n *Group) ComputeTransform(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.M44f, error) {
	src, depth, err := n.source(ctx, path, ec)
	switch {
	case err != nil:
		return geom.M44f{}, err
	case depth == 0:
		return geom.Identity(), nil
	case depth == 1:
		return n.TransformPlug.Value(ctx, ec)
	}
	return n.In.Transform(ctx, ec, src)
}

func (n *Group) ComputeAttributes(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	src, depth, err := n.source(ctx, path, ec)
	if err != nil || depth == 0 {
		return nil, err
	}
	return n.In.Attributes(ctx, ec, src)
}

func (n *Group) ComputeObject(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (Object, error) {
	src, depth, err := n.source(ctx, path, ec)
	if err != nil || depth == 0 {
		return nil, err
	}
	return n.In.Object(ctx, ec, src)
}

func (n *Group) ComputeChildNames(ctx context.Context, path Path, ec *plugraph.Context, out Plug) ([]string, error) {
	src, depth, err := n.source(ctx, path, ec)
	if err != nil {
		return nil, err
	}
	if depth == 0 {
		name, err := locationName(ctx, ec, n.NamePlug)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}
	return n.In.ChildNames(ctx, ec, src)
}

// ComputeGlobals is never called: the output globals are connected to the input
// ones.
func (n *Group) ComputeGlobals(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	return n.In.Globals(ctx, ec)
}
