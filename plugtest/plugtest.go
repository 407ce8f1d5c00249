/*
Package plugtest provides a suite of tests checking that node implementations
hash, compute and declare their dependencies consistently.

The suite evaluates a set of queries (plugs under contexts) on a graph, applies a
sequence of mutations to it, and re-evaluates the queries after each one. Call
plugtest.Run in its own test:

	func TestCrop(t *testing.T) {
		g, crop := newCropGraph(t)
		plugtest.Run(t, g,
			[]plugtest.Query{{Plug: crop.Out.DataWindowPlug, Context: plugraph.NewContext()}},
			[]plugtest.Mutation{
				plugtest.Set("move area", crop.Area, geom.NewBox2i(0, 0, 10, 10)),
			},
		)
	}

After every mutation the suite checks that:

  - Equal hashes mean equal values: a node never hashes two different values
    the same (hash/compute consistency).
  - Evaluating the queries again computes nothing (idempotence).
  - Every query whose value changed was reported dirtied by the edit (dirty
    closure), and the cached answers match the answers of a purged cache.

Nodes are encouraged to perform additional tests specific to their semantics.
*/
package plugtest

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/go-plugraph/plugraph"
)

// A Query names a plug and the context to evaluate it under.
type Query struct {
	Plug    plugraph.Plug
	Context *plugraph.Context
}

func (q Query) String() string {
	return fmt.Sprintf("%s under %v", q.Plug.FullName(), q.Context)
}

// A Mutation is a single edit applied by the suite.
type Mutation struct {
	// Subtest name.
	Name string
	// A path leading to the mutation's file and line in the source code.
	Location string
	Edit     plugraph.Edit
}

// Mutate returns a Mutation applying e.
func Mutate(name string, e plugraph.Edit) Mutation {
	return Mutation{Name: name, Location: locateSource(), Edit: e}
}

// Set returns a Mutation storing v on the input plug p.
func Set[T any](name string, p *plugraph.ValuePlug[T], v T) Mutation {
	return Mutation{
		Name:     name,
		Location: locateSource(),
		Edit: func(ctx context.Context, w plugraph.Writer) error {
			return w.SetValue(p, v)
		},
	}
}

// Run applies mutations to g in order, checking the queries after each one. All
// mutations run on the same graph, so a mutation cannot be checked if the one
// before it failed to apply.
func Run(t *testing.T, g *plugraph.Graph, queries []Query, mutations []Mutation) {
	t.Helper()
	// We deliberately use the background context because this suite does not
	// check cancellation.
	ctx := context.Background()

	before := evaluate(ctx, g, queries)
	for _, m := range mutations {
		t.Logf("Read the source for mutation %v at %v", m.Name, m.Location)
		dirtied, err := g.Apply(ctx, m.Edit)
		if err != nil {
			t.Fatalf("Apply(%v) failed: %v", m.Name, err)
		}
		after := evaluate(ctx, g, queries)

		for _, check := range []check{
			dirtyClosure(dirtied),
			idempotence(ctx, g),
			hashConsistency(),
		} {
			for _, problem := range check(queries, before, after) {
				t.Errorf("Check %v: %v", m.Name, problem)
			}
		}
		before = after
	}
}

// An answer is the result of evaluating a Query.
type answer struct {
	hash  plugraph.Hash
	value any
	err   error
}

func evaluate(ctx context.Context, g *plugraph.Graph, queries []Query) []answer {
	answers := make([]answer, len(queries))
	for i, q := range queries {
		a := &answers[i]
		if a.hash, a.err = g.HashOf(ctx, q.Plug, q.Context); a.err != nil {
			continue
		}
		a.value, a.err = g.Evaluate(ctx, q.Plug, q.Context)
	}
	return answers
}

// locateSource returns the file and line of its caller's caller, guiding readers
// of a failure to the mutation that caused it.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
