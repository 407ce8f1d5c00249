package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// Computer computes the values of a scene node's output, one location at a
// time. Every method but ComputeGlobals receives the location being evaluated;
// ec also holds it, for reading upstream plugs at the same location.
type Computer interface {
	ComputeBound(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.Box3f, error)
	ComputeTransform(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.M44f, error)
	ComputeAttributes(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error)
	ComputeObject(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (Object, error)
	ComputeChildNames(ctx context.Context, path Path, ec *plugraph.Context, out Plug) ([]string, error)
	ComputeGlobals(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error)
}

// ErrNoSuchLocation is returned by nodes asked about a location they do not
// produce.
var ErrNoSuchLocation = errors.New("scene: no such location")

// An InvariantError reports a node computing a value the root location is not
// allowed to have.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string { return e.Reason }

// NodeBase implements plugraph.Node for nodes producing a scene on their Out
// plug. Embed it and call InitSceneNode in the constructor, before creating any
// other plug.
type NodeBase struct {
	plugraph.NodeBase
	Out Plug

	computer Computer
}

// SceneNode is implemented by nodes embedding NodeBase.
type SceneNode interface {
	plugraph.Node
	Computer
}

// InitSceneNode initialises the node and creates its "out" scene.
func (n *NodeBase) InitSceneNode(self SceneNode, name string) {
	n.InitNode(self, name)
	n.computer = self
	n.Out = NewPlug(&n.NodeBase, "out", plugraph.Out)
}

// Compute dispatches to the node's Computer and enforces the invariants of the
// root location: it has the identity transform, and neither attributes nor an
// object.
func (n *NodeBase) Compute(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (any, error) {
	out := n.Out
	if output == out.GlobalsPlug {
		return n.computer.ComputeGlobals(ctx, ec, out)
	}
	path, err := ContextPath(ec)
	if err != nil {
		return nil, err
	}

	switch output {
	case out.BoundPlug:
		return n.computer.ComputeBound(ctx, path, ec, out)
	case out.TransformPlug:
		m, err := n.computer.ComputeTransform(ctx, path, ec, out)
		if err != nil {
			return nil, err
		}
		if path.IsRoot() && !m.IsIdentity() {
			return nil, &InvariantError{Reason: "Scene root must have the identity transform"}
		}
		return m, nil
	case out.AttributesPlug:
		a, err := n.computer.ComputeAttributes(ctx, path, ec, out)
		if err != nil {
			return nil, err
		}
		if path.IsRoot() && len(a) > 0 {
			return nil, &InvariantError{Reason: "Scene root must have no attributes"}
		}
		return a, nil
	case out.ObjectPlug:
		o, err := n.computer.ComputeObject(ctx, path, ec, out)
		if err != nil {
			return nil, err
		}
		if path.IsRoot() && o != nil {
			return nil, &InvariantError{Reason: "Scene root must not have an object"}
		}
		return o, nil
	case out.ChildNamesPlug:
		return n.computer.ComputeChildNames(ctx, path, ec, out)
	}
	return nil, fmt.Errorf("scene: %s is not an output of %s", output.FullName(), n.Name())
}

// UnionOfTransformedChildBounds returns the union of the bounds of the children
// of the location at path, each transformed into the space of path. This is the
// bound of a location holding no object of its own. A location without children
// has an empty bound.
func UnionOfTransformedChildBounds(ctx context.Context, ec *plugraph.Context, out Plug, path Path) (geom.Box3f, error) {
	result := geom.EmptyBox3f()
	names, err := out.ChildNames(ctx, ec, path)
	if err != nil {
		return result, err
	}
	for _, name := range names {
		child := path.Child(name)
		b, err := out.Bound(ctx, ec, child)
		if err != nil {
			return geom.Box3f{}, err
		}
		m, err := out.Transform(ctx, ec, child)
		if err != nil {
			return geom.Box3f{}, err
		}
		result = result.Union(m.TransformBox(b))
	}
	return result, nil
}
