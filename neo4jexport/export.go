// Package neo4jexport writes the structure of a plugraph.Graph into a Neo4j
// database so that it can be browsed and queried with Cypher.
//
// Every node of the graph becomes a :Node vertex and every plug a :Plug vertex,
// linked by HAS_PLUG. Connections become CONNECTS edges running from the source
// plug to its destination, and the affects relation of each node becomes
// AFFECTS edges from an input to the outputs that depend on it. Together, the
// CONNECTS and AFFECTS edges form the graph along which dirtiness propagates:
//
//	MATCH (:Plug {graph: $g, fullName: "constant.color"})-[:CONNECTS|AFFECTS*]->(p)
//	RETURN DISTINCT p.fullName
//
// Exporting is idempotent: exporting the same graph twice leaves the database as
// if it was exported once, and exporting an edited graph replaces the previous
// export of that graph.
package neo4jexport

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-plugraph/plugraph"
)

// An Exporter writes graph topologies into a bootstrapped database (see
// BootstrapDatabase).
type Exporter struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewExporter returns an Exporter writing into the named database.
func NewExporter(d neo4j.DriverWithContext, database string) *Exporter {
	return &Exporter{driver: d, database: database}
}

// Export writes the current structure of g (see plugraph.Graph.Topology).
func (e *Exporter) Export(ctx context.Context, g *plugraph.Graph) error {
	return e.ExportTopology(ctx, g.Topology())
}

// ExportTopology writes t in a single write transaction, replacing whatever
// was previously exported under the same graph name. Either the whole topology
// is written, or the database is left untouched.
func (e *Exporter) ExportTopology(ctx context.Context, t plugraph.Topology) (err error) {
	ctx, span := tracer.Start(ctx, "Export", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
		attribute.String(graphNameKey, t.Graph),
		attribute.Int("plugraph.nodes", len(t.Nodes)),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", e.database)

	start := time.Now()
	defer func() {
		measureExport(ctx, t.Graph, err == nil, time.Since(start))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	rows := topologyRows(t)
	_, err = s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, writeTopology(ctx, tx, t, rows)
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	} else if err != nil {
		return fmt.Errorf("neo4j execute: %w", err)
	}
	logger.Debug("Exported graph",
		"graph", t.Graph,
		"generation", t.Generation,
		"nodes", len(rows.nodes),
		"plugs", len(rows.plugs),
	)
	return nil
}

// rows holds a topology flattened into Cypher parameters.
type rows struct {
	nodes    []any
	plugs    []any
	connects []any
	affects  []any
}

func topologyRows(t plugraph.Topology) rows {
	// empty lists rather than nil, which Cypher would see as null.
	r := rows{nodes: []any{}, plugs: []any{}, connects: []any{}, affects: []any{}}
	for _, n := range t.Nodes {
		r.nodes = append(r.nodes, map[string]any{
			"name": n.Name,
			"type": n.Type,
		})
		for _, p := range n.Plugs {
			r.plugs = append(r.plugs, map[string]any{
				"node":      n.Name,
				"name":      p.Name,
				"fullName":  p.FullName,
				"direction": p.Direction.String(),
				"type":      p.Type,
				"dirty":     p.Dirty,
			})
			if p.Input != "" {
				r.connects = append(r.connects, map[string]any{
					"src": p.Input,
					"dst": p.FullName,
				})
			}
			for _, a := range p.Affects {
				r.affects = append(r.affects, map[string]any{
					"src": p.FullName,
					"dst": a,
				})
			}
		}
	}
	return r
}

func writeTopology(ctx context.Context, tx neo4j.ManagedTransaction, t plugraph.Topology, r rows) error {
	params := map[string]any{
		"graph":      t.Graph,
		"generation": int64(t.Generation),
		"nodes":      r.nodes,
		"plugs":      r.plugs,
		"connects":   r.connects,
		"affects":    r.affects,
	}
	queries := []struct {
		name  string
		query string
	}{
		// remove what the graph no longer has; edges are always rewritten.
		{"retract nodes", `
			MATCH (n:` + NodeLabel + ` {graph: $graph})
			WHERE NOT n.name IN [x IN $nodes | x.name]
			DETACH DELETE n
		`},
		{"retract plugs", `
			MATCH (p:` + PlugLabel + ` {graph: $graph})
			WHERE NOT p.fullName IN [x IN $plugs | x.fullName]
			DETACH DELETE p
		`},
		{"retract edges", `
			MATCH (:` + PlugLabel + ` {graph: $graph})-[e:CONNECTS|AFFECTS]->()
			DELETE e
		`},
		{"assert nodes", `
			UNWIND $nodes AS x
			MERGE (n:` + NodeLabel + ` {graph: $graph, name: x.name})
			ON CREATE SET n._created_at = datetime()
			SET n.type = x.type, n.generation = $generation, n._last_modified = datetime()
		`},
		{"assert plugs", `
			UNWIND $plugs AS x
			MATCH (n:` + NodeLabel + ` {graph: $graph, name: x.node})
			MERGE (p:` + PlugLabel + ` {graph: $graph, fullName: x.fullName})
			ON CREATE SET p._created_at = datetime()
			SET p.name = x.name, p.direction = x.direction, p.type = x.type, p.dirty = x.dirty, p._last_modified = datetime()
			MERGE (n)-[:HAS_PLUG]->(p)
		`},
		{"assert connections", `
			UNWIND $connects AS x
			MATCH (src:` + PlugLabel + ` {graph: $graph, fullName: x.src})
			MATCH (dst:` + PlugLabel + ` {graph: $graph, fullName: x.dst})
			MERGE (src)-[:CONNECTS]->(dst)
		`},
		{"assert affects", `
			UNWIND $affects AS x
			MATCH (src:` + PlugLabel + ` {graph: $graph, fullName: x.src})
			MATCH (dst:` + PlugLabel + ` {graph: $graph, fullName: x.dst})
			MERGE (src)-[:AFFECTS]->(dst)
		`},
	}
	for _, q := range queries {
		result, err := tx.Run(ctx, q.query, params)
		if err != nil {
			return fmt.Errorf("%s: run cypher: %w", q.name, err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("%s: consume: %w", q.name, err)
		}
	}
	return nil
}

// Counts summarises what an export of a single graph holds in the database.
type Counts struct {
	Nodes       int64
	Plugs       int64
	Connections int64
	Affects     int64
}

// Count reads back the number of vertices and edges exported for the named
// graph.
func (e *Exporter) Count(ctx context.Context, graph string) (Counts, error) {
	ctx, span := tracer.Start(ctx, "Count", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
		attribute.String(graphNameKey, graph),
	))
	defer span.End()

	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	c, err := s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			CALL {
				MATCH (n:`+NodeLabel+` {graph: $graph}) RETURN count(n) AS nodes
			}
			CALL {
				MATCH (p:`+PlugLabel+` {graph: $graph}) RETURN count(p) AS plugs
			}
			CALL {
				MATCH (:`+PlugLabel+` {graph: $graph})-[e:CONNECTS]->() RETURN count(e) AS connections
			}
			CALL {
				MATCH (:`+PlugLabel+` {graph: $graph})-[e:AFFECTS]->() RETURN count(e) AS affects
			}
			RETURN nodes, plugs, connections, affects
		`, map[string]any{"graph": graph})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("query single result: %w", err)
		}
		var c Counts
		for key, dst := range map[string]*int64{
			"nodes":       &c.Nodes,
			"plugs":       &c.Plugs,
			"connections": &c.Connections,
			"affects":     &c.Affects,
		} {
			if *dst, err = getRecordProperty[int64](record, key); err != nil {
				return nil, fmt.Errorf("get %s: %w", key, err)
			}
		}
		return c, nil
	})
	if err != nil {
		return Counts{}, err
	}
	return c.(Counts), nil
}

// errPropertyNotFound occurs when a record is missing a column, which most
// likely means a Cypher query changed without its surrounding code.
var errPropertyNotFound = errors.New("property not found")

// An unexpectedPropertyTypeError occurs when a column of a record has a runtime
// type different from the expected one.
type unexpectedPropertyTypeError struct {
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	return "unexpected property type: " + e.Type.String()
}

// recordProperty lists the column types getRecordProperty supports; add to it
// as needed.
type recordProperty interface {
	int64 | string | bool
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}
