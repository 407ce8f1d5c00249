package neo4jexport

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-plugraph/plugraph/internal/dbtest"
)

func TestBootstrapDatabase(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	database := dbtest.DatabaseName(t)

	// bootstrapping an existing database changes nothing.
	for range 2 {
		if err := BootstrapDatabase(ctx, d, database); err != nil {
			t.Fatalf("BootstrapDatabase() error = %v", err)
		}
	}

	labels, err := nodeKeyLabels(ctx, d, database)
	if err != nil {
		t.Fatal("Failed to list constraints:", err)
	}
	for _, l := range []string{NodeLabel, PlugLabel} {
		if labels[l] != 1 {
			t.Errorf("found %d node key constraints on %s, want 1", labels[l], l)
		}
	}

	// the same node name may appear in several graphs, but once per graph.
	create := func(graph string) error {
		_, err := neo4j.ExecuteQuery(ctx, d,
			`CREATE (:`+NodeLabel+` {graph: $graph, name: "n"})`,
			map[string]any{"graph": graph},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(database),
		)
		return err
	}
	if err := create("a"); err != nil {
		t.Fatal("Failed to create node:", err)
	}
	if err := create("b"); err != nil {
		t.Errorf("Node of another graph rejected: %v", err)
	}
	if err := create("a"); err == nil {
		t.Error("Duplicate node of the same graph accepted")
	}
}

// nodeKeyLabels counts the node key constraints of each label.
func nodeKeyLabels(ctx context.Context, d neo4j.DriverWithContext, database string) (map[string]int, error) {
	result, err := neo4j.ExecuteQuery(ctx, d,
		"SHOW CONSTRAINTS YIELD type, labelsOrTypes WHERE type = 'NODE_KEY' RETURN labelsOrTypes",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database),
	)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]int)
	for _, r := range result.Records {
		v, _ := r.Get("labelsOrTypes")
		for _, l := range v.([]any) {
			labels[l.(string)]++
		}
	}
	return labels, nil
}

func TestBootstrapDatabase_reservedNames(t *testing.T) {
	for _, name := range []string{"", "neo4j", "system2", "_private"} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("BootstrapDatabase(%q) did not panic", name)
				}
			}()
			// a nil driver is never reached: names are checked first.
			_ = BootstrapDatabase(context.Background(), nil, name)
		})
	}
}
