package plugraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/danielorbach/go-component"
)

// An Edit is a function that changes a graph through a Writer. Edits are applied
// atomically with respect to evaluations by Graph.Apply.
type Edit func(ctx context.Context, w Writer) error

// Writer is the interface through which an Edit changes a graph. Every change
// invalidates the plugs it affects, and every plug downstream of them.
//
// Within an Edit, use the Writer rather than the ValuePlug setters, which apply
// edits of their own.
type Writer interface {
	Graph() *Graph
	// Plug looks up a plug by full name, like Graph.Plug.
	Plug(fullName string) (Plug, error)
	AddNode(n Node) error
	RemoveNode(name string) error
	// SetValue stores v on the input plug p; v must hold p's value type.
	SetValue(p Plug, v any) error
	// Connect makes dst receive its value from src.
	Connect(dst, src Plug) error
	// Disconnect removes dst's input connection, if any.
	Disconnect(dst Plug) error
}

// Apply runs e with exclusive access to g, and reports every plug the edit
// dirtied, in propagation order, each exactly once.
//
// Apply has no rollback: when e fails, the changes it made before failing stay
// applied and are reported alongside the error. Apply fails when called from
// within a computation.
func (g *Graph) Apply(ctx context.Context, e Edit) (PlugsDirtied, error) {
	lockedCtx, release, err := g.enterEdit(ctx)
	if err != nil {
		return PlugsDirtied{}, err
	}
	w := &graphWriter{g: g, seen: make(map[Plug]struct{})}
	err = e(lockedCtx, w)

	before := g.generation
	if len(w.dirtied) > 0 {
		g.generation++
	}
	d := PlugsDirtied{
		Graph:  g.name,
		Before: before,
		After:  g.generation,
		Plugs:  w.dirtied,
	}
	release()

	if err != nil {
		component.Logger(ctx).Warn("Edit failed", "graph", g.name, "error", err, "dirtied", len(d.Plugs))
	}
	if !d.IsEmpty() {
		g.notify(ctx, d)
	}
	return d, err
}

type graphWriter struct {
	g *Graph
	// seen and dirtied accumulate the notification of the whole edit; every
	// propagation still bumps the plugs it reaches.
	seen    map[Plug]struct{}
	dirtied []string
}

func (w *graphWriter) Graph() *Graph { return w.g }

func (w *graphWriter) Plug(fullName string) (Plug, error) {
	return w.g.lookupPlug(fullName)
}

func (w *graphWriter) AddNode(n Node) error {
	b := n.base()
	switch {
	case b.self == nil:
		return fmt.Errorf("add node: %T was not initialised with InitNode", n)
	case b.name == "" || strings.Contains(b.name, "."):
		return fmt.Errorf("add node: invalid name %q", b.name)
	case b.graph != nil:
		return fmt.Errorf("add node %q: already part of graph %q", b.name, b.graph.name)
	}
	if _, dup := w.g.nodes[b.name]; dup {
		return fmt.Errorf("add node %q: %w", b.name, ErrDuplicateNode)
	}
	// connections made while detached must come from the node itself or from
	// nodes already added, so add upstream nodes first.
	for _, p := range b.plugs {
		if in := p.Input(); in != nil && in.base().owner != b && in.base().owner.graph != w.g {
			return fmt.Errorf("add node %q: plug %s connected to %s, outside the graph", b.name, p.Name(), in.FullName())
		}
	}
	b.graph = w.g
	w.g.nodes[b.name] = n
	w.g.order = append(w.g.order, n)
	return nil
}

func (w *graphWriter) RemoveNode(name string) error {
	n, ok := w.g.nodes[name]
	if !ok {
		return fmt.Errorf("remove node: %w: %q", ErrNodeNotFound, name)
	}
	b := n.base()
	var ids []uint64
	for _, p := range b.plugs {
		ids = append(ids, p.base().id)
		if in := p.Input(); in != nil && in.base().owner != b {
			disconnect(p)
		}
		for _, out := range p.Outputs() {
			if out.base().owner != b {
				disconnect(out)
				w.propagate(out)
			}
		}
	}
	delete(w.g.nodes, name)
	w.g.order = slices.DeleteFunc(w.g.order, func(x Node) bool { return x == n })
	b.graph = nil
	w.g.cache.forget(ids)
	return nil
}

func (w *graphWriter) SetValue(p Plug, v any) error {
	if err := w.owns(p); err != nil {
		return err
	}
	if err := p.setStoredValue(v); err != nil {
		return err
	}
	w.propagate(p)
	return nil
}

func (w *graphWriter) Connect(dst, src Plug) error {
	if err := w.owns(dst); err != nil {
		return err
	}
	if err := w.owns(src); err != nil {
		return err
	}
	if dst.Input() == src {
		return nil
	}
	if err := connect(dst, src); err != nil {
		return err
	}
	w.propagate(dst)
	return nil
}

func (w *graphWriter) Disconnect(dst Plug) error {
	if err := w.owns(dst); err != nil {
		return err
	}
	if dst.Input() == nil {
		return nil
	}
	disconnect(dst)
	w.propagate(dst)
	return nil
}

func (w *graphWriter) owns(p Plug) error {
	if p.base().graph() != w.g {
		return fmt.Errorf("%s: %w", p.FullName(), ErrDetached)
	}
	return nil
}

// connect validates and makes the connection src -> dst, replacing dst's
// existing input. Outputs only accept connections from plugs of their own node,
// which is how nodes pass inputs through unchanged.
func connect(dst, src Plug) error {
	d, s := dst.base(), src.base()
	switch {
	case d.typ != s.typ:
		return fmt.Errorf("connect %s to %s: %s != %s: %w", src.FullName(), dst.FullName(), s.typ, d.typ, ErrIncompatible)
	case d.dir == Out && s.owner != d.owner:
		return fmt.Errorf("connect %s to %s: outputs accept connections from their own node only: %w", src.FullName(), dst.FullName(), ErrIncompatible)
	case dependsOn(src, dst):
		return fmt.Errorf("connect %s to %s: %w", src.FullName(), dst.FullName(), ErrCycle)
	}
	disconnect(dst)
	d.input = src
	s.outputs = append(s.outputs, dst)
	return nil
}

func disconnect(dst Plug) {
	d := dst.base()
	if d.input == nil {
		return
	}
	s := d.input.base()
	s.outputs = slices.DeleteFunc(s.outputs, func(p Plug) bool { return p == dst })
	d.input = nil
}

// dependsOn reports whether the value of p depends on target, following input
// connections and the affects relation of computed outputs.
func dependsOn(p, target Plug) bool {
	seen := make(map[Plug]bool)
	var visit func(p Plug) bool
	visit = func(p Plug) bool {
		if p == target {
			return true
		}
		if seen[p] {
			return false
		}
		seen[p] = true
		if in := p.Input(); in != nil {
			return visit(in)
		}
		if p.Direction() == Out {
			for _, dep := range Dependencies(p) {
				if visit(dep) {
					return true
				}
			}
		}
		return false
	}
	return visit(p)
}
