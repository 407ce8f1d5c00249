package plugtest

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-plugraph/plugraph"
)

// A check returns the problems found with the answers to queries before and
// after a mutation.
type check func(queries []Query, before, after []answer) (problems []string)

var equateValues = cmp.Options{cmpopts.EquateEmpty(), cmpopts.EquateNaNs()}

func (a answer) equal(b answer) bool {
	if a.err != nil || b.err != nil {
		return a.err != nil && b.err != nil && a.err.Error() == b.err.Error()
	}
	return cmp.Equal(a.value, b.value, equateValues)
}

// Checks that every query whose answer changed was dirtied.
func dirtyClosure(dirtied plugraph.PlugsDirtied) check {
	return func(queries []Query, before, after []answer) (problems []string) {
		for i, q := range queries {
			if before[i].equal(after[i]) {
				continue
			}
			if !dirtied.Contains(q.Plug.FullName()) {
				problems = append(problems, fmt.Sprintf("%v changed but was not dirtied", q))
			}
		}
		return problems
	}
}

// Checks that evaluating the queries again computes nothing, and that the cached
// answers are those of an empty cache. Failures are never cached, so failed
// queries are only checked against the empty cache.
func idempotence(ctx context.Context, g *plugraph.Graph) check {
	return func(queries []Query, _, after []answer) (problems []string) {
		var succeeded []Query
		for i, q := range queries {
			if after[i].err == nil {
				succeeded = append(succeeded, q)
			}
		}
		stats := g.Cache().Stats()
		evaluate(ctx, g, succeeded)
		if s := g.Cache().Stats(); s.Computes != stats.Computes {
			problems = append(problems, fmt.Sprintf("re-evaluation performed %d computes, want 0", s.Computes-stats.Computes))
		}
		again := evaluate(ctx, g, queries)

		g.Cache().Purge()
		fresh := evaluate(ctx, g, queries)
		for i, q := range queries {
			if again[i].hash != fresh[i].hash || !again[i].equal(fresh[i]) {
				problems = append(problems, fmt.Sprintf("%v is stale: cached %v, computed %v", q, describe(again[i]), describe(fresh[i])))
			}
		}
		return problems
	}
}

// Checks that queries sharing a hash share a value. Answers are compared pairwise
// across the mutation, and across queries of the same plug type.
func hashConsistency() check {
	return func(queries []Query, before, after []answer) (problems []string) {
		all := append(append([]answer(nil), before...), after...)
		at := func(i int) Query { return queries[i%len(queries)] }
		for i := 0; i < len(all); i++ {
			for j := i + 1; j < len(all); j++ {
				a, b := all[i], all[j]
				if a.err != nil || b.err != nil || a.hash != b.hash {
					continue
				}
				if at(i).Plug.Type() != at(j).Plug.Type() {
					continue
				}
				if !a.equal(b) {
					problems = append(problems, fmt.Sprintf("%v and %v share hash %v but hold %v and %v",
						at(i), at(j), a.hash, describe(a), describe(b)))
				}
			}
		}
		return problems
	}
}

func describe(a answer) string {
	if a.err != nil {
		return fmt.Sprintf("error %q", a.err)
	}
	return fmt.Sprintf("%v", a.value)
}
