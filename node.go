package plugraph

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Node is a unit of computation owning a fixed set of plugs. A node computes
// each of its output plugs from its inputs, and declares through Affects which
// outputs depend on which inputs.
//
// Implementations embed NodeBase, call InitNode and create their plugs with
// NewPlug in their constructor:
//
//	type Double struct {
//		plugraph.NodeBase
//		In  *plugraph.ValuePlug[int]
//		Out *plugraph.ValuePlug[int]
//	}
//
//	func NewDouble(name string) *Double {
//		n := &Double{}
//		n.InitNode(n, name)
//		n.In = plugraph.NewPlug(&n.NodeBase, "in", plugraph.In, 0)
//		n.Out = plugraph.NewPlug(&n.NodeBase, "out", plugraph.Out, 0)
//		return n
//	}
type Node interface {
	Name() string
	// TypeName identifies the node's type, as registered with RegisterNodeType.
	TypeName() string
	// Plugs lists the node's plugs in creation order.
	Plugs() []Plug
	// Affects returns the plugs of this node (usually outputs) whose values depend
	// on p. It is queried for inputs and outputs alike; an output may affect other
	// outputs of the same node.
	Affects(p Plug) []Plug
	// Compute returns the value of the output plug under ec. It must be a pure
	// function of the values it reads through the graph under the given contexts.
	Compute(ctx context.Context, output Plug, ec *Context) (any, error)

	base() *NodeBase
}

// NodeHasher is implemented by nodes that do not rely on DefaultHash for some
// (or all) of their outputs. Hash must feed h with everything Compute reads for
// the same output and context: a hash missing an input of the computation
// yields stale values, and a hash including unneeded inputs only costs cache
// efficiency.
//
// Implementations typically call AppendPreamble first, or h.Assign to pass an
// upstream hash through unchanged.
type NodeHasher interface {
	Hash(ctx context.Context, output Plug, ec *Context, h *Hasher) error
}

// NodeBase implements the bookkeeping part of Node. Embed it in node types.
type NodeBase struct {
	self     Node
	name     string
	typeName string
	plugs    []Plug
	graph    *Graph
}

// InitNode names the node and records self as the Node embedding b. It must be
// called before any plug is created.
func (b *NodeBase) InitNode(self Node, name string) {
	if self.base() != b {
		panic("plugraph: InitNode called with a node not embedding this NodeBase")
	}
	b.self = self
	b.name = name
	b.typeName = typeNameOf(self)
}

func (b *NodeBase) Name() string     { return b.name }
func (b *NodeBase) TypeName() string { return b.typeName }
func (b *NodeBase) base() *NodeBase  { return b }

// Plugs returns the node's plugs in creation order.
func (b *NodeBase) Plugs() []Plug {
	return slices.Clone(b.plugs)
}

// Plug returns the plug with the given name.
func (b *NodeBase) Plug(name string) (Plug, bool) {
	for _, p := range b.plugs {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Graph returns the graph the node belongs to, or nil.
func (b *NodeBase) Graph() *Graph {
	return b.graph
}

// Affects declares no dependencies; node types override it.
func (b *NodeBase) Affects(Plug) []Plug {
	return nil
}

func (b *NodeBase) addPlug(p Plug) {
	if b.self == nil {
		panic("plugraph: NewPlug called before InitNode")
	}
	if _, dup := b.Plug(p.Name()); dup {
		panic(fmt.Sprintf("plugraph: duplicate plug %q on node %q", p.Name(), b.name))
	}
	b.plugs = append(b.plugs, p)
}

// Dependencies returns the plugs of output's node that affect output, in
// creation order. This is the set DefaultHash folds into the hash.
func Dependencies(output Plug) []Plug {
	n := output.Node()
	if n == nil {
		return nil
	}
	var deps []Plug
	for _, p := range n.Plugs() {
		if p != output && slices.Contains(n.Affects(p), output) {
			deps = append(deps, p)
		}
	}
	return deps
}

// AppendPreamble writes the identity of output (its node type and name) and the
// hash of ec to h. Every node hash starts with it, so that different plugs or
// different contexts never share a hash by accident.
func AppendPreamble(h *Hasher, output Plug, ec *Context) {
	if n := output.Node(); n != nil {
		h.WriteString(n.TypeName())
	}
	h.WriteString(output.Name())
	h.WriteHash(ec.Hash())
}

// DefaultHash hashes output from the preamble and the hashes of its
// Dependencies evaluated under the same context.
//
// It is correct for any node whose Compute reads its dependencies only under the
// context it was given. Nodes reading upstream plugs under modified contexts
// must implement NodeHasher.
func DefaultHash(ctx context.Context, output Plug, ec *Context, h *Hasher) error {
	AppendPreamble(h, output, ec)
	for _, p := range Dependencies(output) {
		x, err := hashOf(ctx, p, ec)
		if err != nil {
			return err
		}
		h.WriteHash(x)
	}
	return nil
}

// typeNameOf returns the registered name of n's type, or its qualified Go name.
func typeNameOf(n Node) string {
	rt := reflect.TypeOf(n)
	if name, ok := globalNodeRegistry.NameOf(rt); ok {
		return name
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.PkgPath()[strings.LastIndexByte(rt.PkgPath(), '/')+1:] + "." + rt.Name()
}
