package plugraph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// A Graph owns a set of uniquely named nodes and the connections between their
// plugs, and evaluates plugs on demand through its Cache.
//
// Evaluations (Evaluate, HashOf, ValuePlug.Value, ...) may run concurrently from
// any number of goroutines. Edits (Apply, and the ValuePlug setters built on it)
// are serialised with each other and exclude evaluations while they run.
type Graph struct {
	name string
	mu   evalEditMutex

	// nodes and order are guarded by mu.
	nodes map[string]Node
	order []Node
	// generation counts applied edits; guarded by mu.
	generation uint64

	cache *Cache

	subsMu sync.Mutex
	subs   map[int]func(context.Context, PlugsDirtied)
	nextID int
}

// An Option configures a Graph created by NewGraph.
type Option func(*Graph)

// WithCache makes the graph memoise hashes and values in c, which may be shared
// with other graphs.
func WithCache(c *Cache) Option {
	return func(g *Graph) { g.cache = c }
}

// NewGraph returns an empty graph. Unless configured otherwise, the graph uses
// its own Cache sized with DefaultCacheConfig.
func NewGraph(name string, opts ...Option) *Graph {
	g := &Graph{
		name:  name,
		nodes: make(map[string]Node),
		subs:  make(map[int]func(context.Context, PlugsDirtied)),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = NewCache(DefaultCacheConfig)
	}
	return g
}

func (g *Graph) Name() string  { return g.name }
func (g *Graph) Cache() *Cache { return g.cache }

// Node returns the node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	g.mu.EvalLock()
	defer g.mu.EvalUnlock()
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns the graph's nodes in the order they were added.
func (g *Graph) Nodes() []Node {
	g.mu.EvalLock()
	defer g.mu.EvalUnlock()
	return slices.Clone(g.order)
}

// Plug returns the plug with the given full name, e.g. "crop1.out.format".
func (g *Graph) Plug(fullName string) (Plug, error) {
	g.mu.EvalLock()
	defer g.mu.EvalUnlock()
	return g.lookupPlug(fullName)
}

// plugAt is Plug for callers whose ctx may already hold a lock on g.
func (g *Graph) plugAt(ctx context.Context, fullName string) (Plug, error) {
	_, release := g.enterEval(ctx)
	defer release()
	return g.lookupPlug(fullName)
}

func (g *Graph) lookupPlug(fullName string) (Plug, error) {
	nodeName, plugName, ok := strings.Cut(fullName, ".")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlugNotFound, fullName)
	}
	n, ok := g.nodes[nodeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, nodeName)
	}
	p, ok := n.base().Plug(plugName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlugNotFound, fullName)
	}
	return p, nil
}

// Evaluate returns the value of p under ec, computing it if necessary. See
// ValuePlug.Value for the typed equivalent.
func (g *Graph) Evaluate(ctx context.Context, p Plug, ec *Context) (any, error) {
	if p.base().graph() != g {
		return nil, fmt.Errorf("evaluate %s: %w", p.FullName(), ErrDetached)
	}
	ctx, release := g.enterEval(ctx)
	defer release()
	return g.value(ctx, p, ec)
}

// HashOf returns the hash of p under ec without computing its value.
func (g *Graph) HashOf(ctx context.Context, p Plug, ec *Context) (Hash, error) {
	if p.base().graph() != g {
		return Hash{}, fmt.Errorf("hash %s: %w", p.FullName(), ErrDetached)
	}
	ctx, release := g.enterEval(ctx)
	defer release()
	return g.hash(ctx, p, ec)
}

// hashOf is HashOf for callers already inside an evaluation.
func hashOf(ctx context.Context, p Plug, ec *Context) (Hash, error) {
	g := p.base().graph()
	if g == nil {
		return Hash{}, fmt.Errorf("hash %s: %w", p.FullName(), ErrDetached)
	}
	return g.HashOf(ctx, p, ec)
}

// OnDirtied registers fn to be called after every Apply that dirtied at least
// one plug. Callbacks run on the goroutine that applied the edit, after the
// graph is unlocked, so they may evaluate plugs. The returned function cancels
// the registration.
func (g *Graph) OnDirtied(fn func(context.Context, PlugsDirtied)) (cancel func()) {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	return func() {
		g.subsMu.Lock()
		defer g.subsMu.Unlock()
		delete(g.subs, id)
	}
}

func (g *Graph) notify(ctx context.Context, d PlugsDirtied) {
	g.subsMu.Lock()
	ids := make([]int, 0, len(g.subs))
	for id := range g.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(context.Context, PlugsDirtied), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, g.subs[id])
	}
	g.subsMu.Unlock()

	for _, fn := range subs {
		fn(ctx, d)
	}
}

// Topology is a point-in-time description of a graph's structure, suitable for
// printing and exporting.
type Topology struct {
	Graph      string
	Generation uint64
	Nodes      []NodeTopology
}

type NodeTopology struct {
	Name  string
	Type  string
	Plugs []PlugTopology
}

type PlugTopology struct {
	Name      string
	FullName  string
	Direction Direction
	Type      string
	// Input is the full name of the plug's input connection, if any.
	Input string
	// Affects lists the full names of the plugs of the same node that depend on
	// this one.
	Affects []string
	Dirty   bool
}

// Topology describes the current structure of g.
func (g *Graph) Topology() Topology {
	g.mu.EvalLock()
	defer g.mu.EvalUnlock()

	t := Topology{Graph: g.name, Generation: g.generation}
	for _, n := range g.order {
		nt := NodeTopology{Name: n.Name(), Type: n.TypeName()}
		for _, p := range n.Plugs() {
			pt := PlugTopology{
				Name:      p.Name(),
				FullName:  p.FullName(),
				Direction: p.Direction(),
				Type:      p.Type().String(),
				Dirty:     p.IsDirty(),
			}
			if in := p.Input(); in != nil {
				pt.Input = in.FullName()
			}
			for _, a := range n.Affects(p) {
				pt.Affects = append(pt.Affects, a.FullName())
			}
			nt.Plugs = append(nt.Plugs, pt)
		}
		t.Nodes = append(t.Nodes, nt)
	}
	return t
}
