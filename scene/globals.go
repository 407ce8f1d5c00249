package scene

import (
	"context"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// GlobalsProcessing is implemented by nodes embedding GlobalsProcessor.
type GlobalsProcessing interface {
	// ProcessGlobals returns the output globals given the input ones. The input
	// must not be modified.
	ProcessGlobals(ctx context.Context, ec *plugraph.Context, in plugraph.CompoundObject) (plugraph.CompoundObject, error)
}

// GlobalsProcessor is the base of nodes modifying the globals of a scene and
// nothing else. Everything but the globals is passed through from In by
// connection.
type GlobalsProcessor struct {
	NodeBase
	In Plug

	processor GlobalsProcessing
}

// InitGlobalsProcessor initialises the node, creating its "in" and "out"
// scenes.
func (n *GlobalsProcessor) InitGlobalsProcessor(self interface {
	SceneNode
	GlobalsProcessing
}, name string) {
	n.InitSceneNode(self, name)
	n.processor = self
	n.In = NewPlug(&n.NodeBase.NodeBase, "in", plugraph.In)
	in := n.In.Children()
	for i, out := range n.Out.Children() {
		if out == n.Out.GlobalsPlug {
			continue
		}
		if err := out.(interface{ SetInput(plugraph.Plug) error }).SetInput(in[i]); err != nil {
			panic(err)
		}
	}
}

// Affects maps each plug of In to the same plug of Out.
func (n *GlobalsProcessor) Affects(p plugraph.Plug) []plugraph.Plug {
	if n.In.Contains(p) {
		return []plugraph.Plug{n.Out.Corresponding(n.In, p)}
	}
	return nil
}

func (n *GlobalsProcessor) ComputeBound(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.Box3f, error) {
	return n.In.BoundPlug.Value(ctx, ec)
}

func (n *GlobalsProcessor) ComputeTransform(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (geom.M44f, error) {
	return n.In.TransformPlug.Value(ctx, ec)
}

func (n *GlobalsProcessor) ComputeAttributes(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	return n.In.AttributesPlug.Value(ctx, ec)
}

func (n *GlobalsProcessor) ComputeObject(ctx context.Context, path Path, ec *plugraph.Context, out Plug) (Object, error) {
	return n.In.ObjectPlug.Value(ctx, ec)
}

func (n *GlobalsProcessor) ComputeChildNames(ctx context.Context, path Path, ec *plugraph.Context, out Plug) ([]string, error) {
	return n.In.ChildNamesPlug.Value(ctx, ec)
}

// ComputeGlobals calls ProcessGlobals with the input globals.
func (n *GlobalsProcessor) ComputeGlobals(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	in, err := n.In.GlobalsPlug.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	return n.processor.ProcessGlobals(ctx, ec, in)
}

// CustomOptions adds its Options to the scene globals, each under the key
// "option:<name>".
type CustomOptions struct {
	GlobalsProcessor
	Options *plugraph.ValuePlug[plugraph.CompoundObject]
}

func NewCustomOptions(name string) *CustomOptions {
	n := &CustomOptions{}
	n.InitGlobalsProcessor(n, name)
	n.Options = plugraph.NewPlug[plugraph.CompoundObject](&n.NodeBase.NodeBase, "options", plugraph.In, nil)
	return n
}

func (n *CustomOptions) Affects(p plugraph.Plug) []plugraph.Plug {
	if p == n.Options {
		return []plugraph.Plug{n.Out.GlobalsPlug}
	}
	return n.GlobalsProcessor.Affects(p)
}

func (n *CustomOptions) ProcessGlobals(ctx context.Context, ec *plugraph.Context, in plugraph.CompoundObject) (plugraph.CompoundObject, error) {
	options, err := n.Options.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return in, nil
	}
	out := in.Clone()
	for name, v := range options {
		out["option:"+name] = v
	}
	return out, nil
}
