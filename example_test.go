package plugraph_test

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/danielorbach/go-component/loader"
	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/edit"
)

// First, we define a node type. Double outputs twice its input.

// All node types are structs that embed plugraph.NodeBase.
type Double struct {
	// Always embed this type to implement plugraph.Node.
	plugraph.NodeBase
	// Plugs are created by the constructor (see NewDouble) and kept in fields for
	// typed access.
	In  *plugraph.ValuePlug[int]
	Out *plugraph.ValuePlug[int]
}

// NewDouble creates a detached Double node. Constructors have the signature
// expected by plugraph.RegisterNodeType.
func NewDouble(name string) *Double {
	n := &Double{}
	// InitNode must be called before creating any plug.
	n.InitNode(n, name)
	n.In = plugraph.NewPlug(&n.NodeBase, "in", plugraph.In, 0)
	n.Out = plugraph.NewPlug(&n.NodeBase, "out", plugraph.Out, 0)
	return n
}

// Affects declares which outputs depend on which plugs. The engine hashes an
// output from everything that affects it, and invalidates it whenever one of
// those changes.
func (n *Double) Affects(p plugraph.Plug) []plugraph.Plug {
	if p == n.In {
		return []plugraph.Plug{n.Out}
	}
	return nil
}

// Compute returns the value of an output under a context.
func (n *Double) Compute(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (any, error) {
	in, err := n.In.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	return 2 * in, nil
}

// Register the node type so that scripts and serialised edits can create it by
// name.
func init() {
	plugraph.RegisterNodeType("example.double", NewDouble)
}

func Example() {
	first, second := NewDouble("first"), NewDouble("second")
	_ = first.In.SetValue(3)

	g := plugraph.NewGraph("example")
	d, err := g.Apply(context.Background(), func(ctx context.Context, w plugraph.Writer) error {
		if err := w.AddNode(first); err != nil {
			return err
		}
		if err := w.AddNode(second); err != nil {
			return err
		}
		return w.Connect(second.In, first.Out)
	})
	if err != nil {
		panic(err)
	}
	fmt.Print(plugraph.FormatDirtied(d, ""))

	v, err := second.Out.Value(context.Background(), plugraph.NewContext())
	if err != nil {
		panic(err)
	}
	fmt.Println("second.out =", v)
	// Output:
	// graph example: generation 0 -> 1
	// * second
	//   in
	//   out
	// second.out = 12
}

//=============================================================================

// Next, we create a component.Descriptor that serves a graph: it applies edits
// received from one target and publishes the plugs they dirtied to another,
// both whole and split per node.

// Component describes an exemplar component deployment.
//
// For this example, we will omit most of its fields - do not omit them in your
// own components.
var Component = component.Descriptor{
	Name: "ExampleComponent",
	// ...
	Bootstrap: func(l *component.L, linker component.Linker, options any) error {
		const (
			editsInterest   = "example.edits"
			dirtiedAspect   = "example.plugs-dirtied"
			dirtiedInterest = "example.plugs-dirtied"
			nodesAspect     = "example.nodes-dirtied"
		)
		logger := component.Logger(l.Context())

		edits, err := linker.LinkInterest(l.GraceContext(), editsInterest)
		if err != nil {
			return fmt.Errorf("open interest %q: %w", editsInterest, err)
		}
		l.CleanupBackground(edits.Shutdown)

		dirtied, err := linker.LinkAspect(l.GraceContext(), dirtiedAspect)
		if err != nil {
			return fmt.Errorf("open aspect %q: %w", dirtiedAspect, err)
		}
		l.CleanupContext(dirtied.Shutdown)

		// A serving graph is composed of two concurrent processes: applying edits to
		// the graph, and splitting its notifications per node.
		editor := plugraph.Editor{Graph: plugraph.NewGraph("example"), Sink: dirtied}
		l.Fork("apply edits", editor.ApplyEdits(edits, edit.DecodeEdit))

		split, err := linker.LinkInterest(l.GraceContext(), dirtiedInterest)
		if err != nil {
			return fmt.Errorf("open interest %q: %w", dirtiedInterest, err)
		}
		l.CleanupBackground(split.Shutdown)
		nodes, err := linker.LinkAspect(l.GraceContext(), nodesAspect)
		if err != nil {
			return fmt.Errorf("open aspect %q: %w", nodesAspect, err)
		}
		l.CleanupContext(nodes.Shutdown)
		l.Fork("splitter", plugraph.NewSplitter("example", split, nodes))

		// Once all the component's subcomponents have started, we return from Bootstrap
		// to indicate to the caller (manager/loader/whatever) that the component is
		// ready and executing.
		logger.Info("Serving graph", slog.String("graph", editor.Graph.Name()))
		return nil
	},
}

// Finally, we load the component descriptor as part of an executable's main()
// function using component.EntrypointProc (see the component package for more
// details).

func ExampleEditor_component() {
	loader.ParseFlags(&Component)
	// A deployable executable must know how to load its component descriptors.
	//
	// For this example, leave that part to your imagination.
}
