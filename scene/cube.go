package scene

import (
	"context"
	"fmt"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

func init() {
	plugraph.RegisterNodeType("scene.Cube", NewCube)
	plugraph.RegisterNodeType("scene.Group", NewGroup)
	plugraph.RegisterNodeType("scene.CustomOptions", NewCustomOptions)
}

// Cube is a scene holding a single cube mesh at "/<name>".
type Cube struct {
	NodeBase
	// NamePlug names the cube's location.
	NamePlug *plugraph.ValuePlug[string]
	// Dimensions of the cube, centered on the origin of its location.
	Dimensions    *plugraph.ValuePlug[geom.V3f]
	TransformPlug *plugraph.ValuePlug[geom.M44f]
}

func NewCube(name string) *Cube {
	n := &Cube{}
	n.InitSceneNode(n, name)
	n.NamePlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "name", plugraph.In, "cube")
	n.Dimensions = plugraph.NewPlug(&n.NodeBase.NodeBase, "dimensions", plugraph.In, geom.V3f{X: 1, Y: 1, Z: 1})
	n.TransformPlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "transform", plugraph.In, geom.Identity())
	return n
}

func (n *Cube) Affects(p plugraph.Plug) []plugraph.Plug {
	switch p {
	case n.NamePlug:
		return []plugraph.Plug{n.Out.BoundPlug, n.Out.TransformPlug, n.Out.AttributesPlug, n.Out.ObjectPlug, n.Out.ChildNamesPlug}
	case n.Dimensions:
		return []plugraph.Plug{n.Out.BoundPlug, n.Out.ObjectPlug}
	case n.TransformPlug:
		return []plugraph.Plug{n.Out.BoundPlug, n.Out.TransformPlug}
	}
	return nil
}

// location reports whether path is the root (depth 0) or the cube (depth 1).
func (n *Cube) location(ctx context.Context, path Path, ec *plugraph.Context) (depth int, err error) {
	if path.IsRoot() {
		return 0, nil
	}
	name, err := locationName(ctx, ec, n.NamePlug)
	if err != nil {
		return 0, err
	}
	if len(path) != 1 || path[0] != name {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchLocation, path)
	}
	return 1, nil
}

func (n *Cube) box(ctx context.Context, ec *plugraph.Context) (geom.Box3f, error) {
	d, err := n.Dimensions.Value(ctx, ec)
	if err != nil {
		return geom.Box3f{}, err
	}
	half := d.Scale(0.5)
	return geom.Box3f{Min: half.Scale(-1), Max: half}, nil
}

func (n *Cube) ComputeBound(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.Box3f, error) {
	depth, err := n.location(ctx, path, ec)
	if err != nil {
		return geom.Box3f{}, err
	}
	if depth == 0 {
		return UnionOfTransformedChildBounds(ctx, ec, out, path)
	}
	return n.box(ctx, ec)
}

func (n *Cube) ComputeTransform(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.M44f, error) {
	depth, err := n.location(ctx, path, ec)
	if err != nil || depth == 0 {
		return geom.Identity(), err
	}
	return n.TransformPlug.Value(ctx, ec)
}

func (n *Cube) ComputeAttributes(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	_, err := n.location(ctx, path, ec)
	return nil, err
}

func (n *Cube) ComputeObject(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (Object, error) {
	depth, err := n.location(ctx, path, ec)
	if err != nil || depth == 0 {
		return nil, err
	}
	b, err := n.box(ctx, ec)
	if err != nil {
		return nil, err
	}
	return NewBoxMesh(b), nil
}

func (n *Cube) ComputeChildNames(ctx context.Context, path Path, ec *plugraph.Context, out Plug) ([]string, error) {
	depth, err := n.location(ctx, path, ec)
	if err != nil || depth == 1 {
		return nil, err
	}
	name, err := locationName(ctx, ec, n.NamePlug)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (n *Cube) ComputeGlobals(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	return nil, nil
}
