package neo4jexport

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Labels of the vertices written by an Exporter.
const (
	NodeLabel = "Node"
	PlugLabel = "Plug"
)

// BootstrapDatabase creates the database and the constraints an Exporter relies
// on.
//
// Vertices are keyed by (graph, name) for nodes and (graph, fullName) for plugs.
// The key constraints prevent duplicate vertices caused by concurrent exports of
// the same graph.
//
// This function is idempotent.
func BootstrapDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if err := createDatabase(ctx, d, name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: name})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		keys := map[string]string{
			NodeLabel: "n.graph, n.name",
			PlugLabel: "n.graph, n.fullName",
		}
		for _, l := range []string{NodeLabel, PlugLabel} {
			// node keys require the enterprise edition, which is what we deploy.
			_, err := tx.Run(ctx, `
				CREATE CONSTRAINT IF NOT EXISTS
				FOR (n:`+l+`)
				REQUIRE (`+keys[l]+`) IS NODE KEY
			`, nil)
			if err != nil {
				return nil, fmt.Errorf("key constraint: label %v: %w", l, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("create constraints: %w", err)
	}
	return s.Close(ctx)
}

func createDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if name == "" {
		panic("neo4jexport: database name must not be empty")
	}
	if name == "neo4j" {
		panic("neo4jexport: database name must not be neo4j: reserved for system database")
	}
	if strings.HasPrefix(name, "system") || strings.HasPrefix(name, "_") {
		panic("neo4jexport: Names that begin with an underscore and with the prefix system are reserved for internal use")
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.Run(ctx, `
			CREATE DATABASE $name IF NOT EXISTS
		`, map[string]any{
		"name": name,
	})
	return err
}
