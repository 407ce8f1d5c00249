package plugraph

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPropagate_chain(t *testing.T) {
	a, b, c := newAdder("a"), newAdder("b"), newAdder("c")
	g := newTestGraph(t, a, b, c)
	mustConnect(t, b.A, a.Sum)
	mustConnect(t, c.A, b.Sum)

	var notified []PlugsDirtied
	cancel := g.OnDirtied(func(_ context.Context, d PlugsDirtied) {
		notified = append(notified, d)
	})
	defer cancel()

	if err := a.A.SetValue(1); err != nil {
		t.Fatal(err)
	}
	want := []string{"a.a", "a.sum", "b.a", "b.sum", "c.a", "c.sum"}
	if len(notified) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notified))
	}
	if diff := cmp.Diff(want, notified[0].Plugs); diff != "" {
		t.Errorf("dirtied plugs mismatch (-want +got):\n%s", diff)
	}
	if d := notified[0]; d.After != d.Before+1 {
		t.Errorf("generation %d -> %d, want an increment", d.Before, d.After)
	}

	// disconnecting only affects what lies downstream of the disconnected plug.
	if err := c.A.SetInput(nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"c.a", "c.sum"}, notified[1].Plugs); diff != "" {
		t.Errorf("dirtied plugs mismatch (-want +got):\n%s", diff)
	}
	if notified[1].Before != notified[0].After {
		t.Errorf("generations are not consecutive: %d then %d", notified[0].After, notified[1].Before)
	}
}

func TestPropagate_diamond(t *testing.T) {
	s, l, r, j := newAdder("s"), newAdder("l"), newAdder("r"), newAdder("j")
	g := newTestGraph(t, s, l, r, j)
	mustConnect(t, l.A, s.Sum)
	mustConnect(t, r.A, s.Sum)
	mustConnect(t, j.A, l.Sum)
	mustConnect(t, j.B, r.Sum)

	before := j.Sum.dirtyCount.Load()
	d, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		return w.SetValue(s.A, 3)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"s.a", "s.sum", "l.a", "r.a", "l.sum", "r.sum", "j.a", "j.b", "j.sum"}
	if diff := cmp.Diff(want, d.Plugs); diff != "" {
		t.Errorf("dirtied plugs mismatch (-want +got):\n%s", diff)
	}
	if got := j.Sum.dirtyCount.Load() - before; got != 1 {
		t.Errorf("j.sum bumped %d times, want 1", got)
	}

	got, err := j.Sum.Value(context.Background(), NewContext())
	if err != nil || got != 6 {
		t.Errorf("j.Sum = %d, %v; want 6", got, err)
	}
}

func TestApply_batched(t *testing.T) {
	a := newAdder("a")
	g := newTestGraph(t, a)
	d, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		if err := w.SetValue(a.A, 1); err != nil {
			return err
		}
		return w.SetValue(a.B, 2)
	})
	if err != nil {
		t.Fatal(err)
	}
	// a.sum is reported once even though both edits reached it.
	if diff := cmp.Diff([]string{"a.a", "a.sum", "a.b"}, d.Plugs); diff != "" {
		t.Errorf("dirtied plugs mismatch (-want +got):\n%s", diff)
	}
	if d.After != d.Before+1 {
		t.Errorf("generation %d -> %d, want a single increment", d.Before, d.After)
	}
}

func TestApply_noop(t *testing.T) {
	a := newAdder("a")
	g := newTestGraph(t, a)
	called := false
	defer g.OnDirtied(func(context.Context, PlugsDirtied) { called = true })()

	d, err := g.Apply(context.Background(), func(ctx context.Context, w Writer) error {
		return w.Disconnect(a.A)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsEmpty() || d.Before != d.After {
		t.Errorf("Apply(noop) = %+v, want an empty notification", d)
	}
	if called {
		t.Errorf("subscriber notified of an empty edit")
	}
}

func TestSplitByNode(t *testing.T) {
	d := PlugsDirtied{
		Graph:  "g",
		Before: 4,
		After:  5,
		Plugs:  []string{"a.in", "a.out.format", "b.in", "a.out.dataWindow"},
	}
	want := []NodeDirtied{
		{Graph: "g", Node: "a", Plugs: []string{"in", "out.format", "out.dataWindow"}, Generation: 5},
		{Graph: "g", Node: "b", Plugs: []string{"in"}, Generation: 5},
	}
	if diff := cmp.Diff(want, SplitByNode(d)); diff != "" {
		t.Errorf("SplitByNode() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatDirtied(t *testing.T) {
	d := PlugsDirtied{Graph: "g", Before: 1, After: 2, Plugs: []string{"a.in", "a.out", "b.in"}}
	want := "> graph g: generation 1 -> 2\n" +
		"> * a\n" +
		">   in\n" +
		">   out\n" +
		"> * b\n" +
		">   in\n"
	if got := FormatDirtied(d, "> "); got != want {
		t.Errorf("FormatDirtied() = %q, want %q", got, want)
	}
}
