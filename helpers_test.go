package plugraph

import (
	"context"
	"sync/atomic"
	"testing"
)

func init() {
	RegisterNodeType("test.adder", newAdder)
}

// adder sums its two inputs, counting its computations.
type adder struct {
	NodeBase
	A, B *ValuePlug[int]
	Sum  *ValuePlug[int]

	computes atomic.Int64
	fail     error
}

func newAdder(name string) *adder {
	n := &adder{}
	n.InitNode(n, name)
	n.A = NewPlug(&n.NodeBase, "a", In, 0)
	n.B = NewPlug(&n.NodeBase, "b", In, 0)
	n.Sum = NewPlug(&n.NodeBase, "sum", Out, 0)
	return n
}

func (n *adder) Affects(p Plug) []Plug {
	if p == n.A || p == n.B {
		return []Plug{n.Sum}
	}
	return nil
}

func (n *adder) Compute(ctx context.Context, output Plug, ec *Context) (any, error) {
	n.computes.Add(1)
	if n.fail != nil {
		return nil, n.fail
	}
	a, err := n.A.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	b, err := n.B.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

// gate computes its input times ten once released, or gives up when its context
// is cancelled.
type gate struct {
	NodeBase
	In  *ValuePlug[int]
	Out *ValuePlug[int]

	computes atomic.Int64
	started  chan struct{}
	release  chan struct{}
}

func newGate(name string) *gate {
	n := &gate{started: make(chan struct{}, 16), release: make(chan struct{})}
	n.InitNode(n, name)
	n.In = NewPlug(&n.NodeBase, "in", In, 0)
	n.Out = NewPlug(&n.NodeBase, "out", Out, 0)
	return n
}

func (n *gate) Affects(p Plug) []Plug {
	if p == n.In {
		return []Plug{n.Out}
	}
	return nil
}

func (n *gate) Compute(ctx context.Context, output Plug, ec *Context) (any, error) {
	n.computes.Add(1)
	select {
	case n.started <- struct{}{}:
	default:
	}
	select {
	case <-n.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	in, err := n.In.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	return in * 10, nil
}

// framed returns its input scaled by the frame of its context.
type framed struct {
	NodeBase
	In  *ValuePlug[float64]
	Out *ValuePlug[float64]
}

func newFramed(name string) *framed {
	n := &framed{}
	n.InitNode(n, name)
	n.In = NewPlug(&n.NodeBase, "in", In, 1.0)
	n.Out = NewPlug(&n.NodeBase, "out", Out, 0.0)
	return n
}

func (n *framed) Affects(p Plug) []Plug {
	if p == n.In {
		return []Plug{n.Out}
	}
	return nil
}

func (n *framed) Compute(ctx context.Context, output Plug, ec *Context) (any, error) {
	in, err := n.In.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	return in * ec.Frame(), nil
}

// newTestGraph adds the given nodes to a new graph, failing the test on error.
func newTestGraph(t *testing.T, nodes ...Node) *Graph {
	t.Helper()
	g := NewGraph("test")
	_, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		for _, n := range nodes {
			if err := w.AddNode(n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Apply(AddNode): %v", err)
	}
	return g
}

func mustConnect(t *testing.T, dst, src Plug) {
	t.Helper()
	g := dst.base().graph()
	_, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		return w.Connect(dst, src)
	})
	if err != nil {
		t.Fatalf("Connect(%s, %s): %v", dst.FullName(), src.FullName(), err)
	}
}
