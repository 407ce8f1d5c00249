package neo4jexport

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
	"github.com/go-plugraph/plugraph/image"
	"github.com/go-plugraph/plugraph/internal/dbtest"
)

// newGraph returns a graph holding a constant image offset by a second node.
func newGraph(t *testing.T) (*plugraph.Graph, *image.Offset) {
	t.Helper()
	g := plugraph.NewGraph("export")
	c := image.NewConstant("constant")
	o := image.NewOffset("offset")
	_, err := g.Apply(context.Background(), func(ctx context.Context, w plugraph.Writer) error {
		if err := w.AddNode(c); err != nil {
			return err
		}
		if err := w.AddNode(o); err != nil {
			return err
		}
		return o.In.Connect(w, c.Out)
	})
	if err != nil {
		t.Fatal("Failed to build graph:", err)
	}
	return g, o
}

func TestTopologyRows(t *testing.T) {
	g, _ := newGraph(t)
	r := topologyRows(g.Topology())

	var nodes []string
	for _, n := range r.nodes {
		nodes = append(nodes, n.(map[string]any)["name"].(string))
	}
	if diff := cmp.Diff([]string{"constant", "offset"}, nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}

	connects := make(map[string]string)
	for _, c := range r.connects {
		m := c.(map[string]any)
		connects[m["dst"].(string)] = m["src"].(string)
	}
	for dst, src := range map[string]string{
		"offset.in.format":       "constant.out.format",
		"offset.in.channelData":  "constant.out.channelData",
		"offset.out.format":      "offset.in.format",
		"offset.out.metadata":    "offset.in.metadata",
		"offset.out.channelData": "",
	} {
		if got := connects[dst]; got != src {
			t.Errorf("connection to %s = %q, want %q", dst, got, src)
		}
	}

	affects := make(map[[2]string]bool)
	for _, a := range r.affects {
		m := a.(map[string]any)
		affects[[2]string{m["src"].(string), m["dst"].(string)}] = true
	}
	for _, edge := range [][2]string{
		{"constant.color", "constant.out.channelData"},
		{"offset.offset", "offset.out.dataWindow"},
		{"offset.in.channelData", "offset.out.channelData"},
	} {
		if !affects[edge] {
			t.Errorf("missing affects edge %s -> %s", edge[0], edge[1])
		}
	}
}

func TestTopologyRows_empty(t *testing.T) {
	r := topologyRows(plugraph.NewGraph("empty").Topology())
	// nil lists reach Cypher as null, which would keep stale vertices alive.
	if r.nodes == nil || r.plugs == nil || r.connects == nil || r.affects == nil {
		t.Errorf("topologyRows() = %+v, want non-nil empty lists", r)
	}
}

func TestExporter(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	database := dbtest.DatabaseName(t)
	if err := BootstrapDatabase(ctx, d, database); err != nil {
		t.Fatal("BootstrapDatabase() error:", err)
	}
	e := NewExporter(d, database)

	g, o := newGraph(t)
	want := wantCounts(g.Topology())

	// exporting twice must not duplicate anything.
	for range 2 {
		if err := e.Export(ctx, g); err != nil {
			t.Fatal("Export() error:", err)
		}
		got, err := e.Count(ctx, g.Name())
		if err != nil {
			t.Fatal("Count() error:", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Count() mismatch (-want +got):\n%s", diff)
		}
	}

	// an edited graph replaces its previous export.
	_, err := g.Apply(ctx, func(ctx context.Context, w plugraph.Writer) error {
		if err := w.RemoveNode("constant"); err != nil {
			return err
		}
		return w.SetValue(o.OffsetPlug, geom.V2i{X: 1, Y: 2})
	})
	if err != nil {
		t.Fatal("Failed to edit graph:", err)
	}
	if err := e.Export(ctx, g); err != nil {
		t.Fatal("Export() error:", err)
	}
	got, err := e.Count(ctx, g.Name())
	if err != nil {
		t.Fatal("Count() error:", err)
	}
	if diff := cmp.Diff(wantCounts(g.Topology()), got); diff != "" {
		t.Errorf("Count() after edit mismatch (-want +got):\n%s", diff)
	}

	// other graphs are untouched by an export.
	other, err := e.Count(ctx, "other")
	if err != nil {
		t.Fatal("Count() error:", err)
	}
	if diff := cmp.Diff(Counts{}, other); diff != "" {
		t.Errorf("Count(other) mismatch (-want +got):\n%s", diff)
	}
}

func wantCounts(t plugraph.Topology) Counts {
	var c Counts
	for _, n := range t.Nodes {
		c.Nodes++
		for _, p := range n.Plugs {
			c.Plugs++
			if p.Input != "" {
				c.Connections++
			}
			c.Affects += int64(len(p.Affects))
		}
	}
	return c
}
