// Command plugraph loads a node graph script, evaluates plugs of the resulting
// graph and optionally exports the graph's structure to Neo4j.
//
// Each query names a plug by its full name and prints its hash and value:
//
//	$ plugraph -script comp.hcl -query crop.out.dataWindow -query group.out.bound@/group
//	crop.out.dataWindow	3f1c...	[(0,0),(100,50)]
//	group.out.bound@/group	9ab0...	[(-1,-1,-1),(1,1,1)]
//
// A failed query prints its error in place of the value and makes plugraph exit
// with status 1 once every query was evaluated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-plugraph/plugraph"
	_ "github.com/go-plugraph/plugraph/image"
	"github.com/go-plugraph/plugraph/neo4jexport"
	"github.com/go-plugraph/plugraph/scene"
	"github.com/go-plugraph/plugraph/script"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "plugraph:", err)
		os.Exit(1)
	}
}

// errQueries reports that at least one query failed.
var errQueries = errors.New("some queries failed")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}
	logger := cfg.logger(stderr)
	ctx = component.InjectLogger(ctx, logger)

	f, err := script.Load(ctx, cfg.Script)
	if err != nil {
		return err
	}
	e, err := f.Edit()
	if err != nil {
		return fmt.Errorf("script %s: %w", cfg.Script, err)
	}

	name := strings.TrimSuffix(filepath.Base(cfg.Script), filepath.Ext(cfg.Script))
	g := plugraph.NewGraph(name, plugraph.WithCache(plugraph.NewCache(cfg.cacheConfig())))
	dirtied, err := g.Apply(ctx, e)
	if err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	logger.Info("Loaded graph", "graph", name, "nodes", len(g.Nodes()), "generation", dirtied.After)

	ec := plugraph.NewContext().With(plugraph.FrameKey, cfg.Frame)
	failed := false
	for _, q := range cfg.Queries {
		if err := query(ctx, stdout, g, ec, q); err != nil {
			logger.Error("Query failed", "query", q, "error", err)
			failed = true
		}
	}
	stats := g.Cache().Stats()
	logger.Debug("Evaluated queries",
		"queries", len(cfg.Queries),
		"cache.hits", stats.Hits,
		"cache.misses", stats.Misses,
		"computes", stats.Computes,
	)

	if cfg.Neo4jURI != "" {
		if err := export(ctx, cfg, g); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if failed {
		return errQueries
	}
	return nil
}

// query evaluates a single "plug[@path]" query and prints a tab-separated line
// holding the query, the hash and the value (or error) of the plug.
func query(ctx context.Context, w io.Writer, g *plugraph.Graph, ec *plugraph.Context, q string) error {
	name, path, scoped := strings.Cut(q, "@")
	if scoped {
		ec = scene.WithPath(ec, scene.ParsePath(path))
	}
	p, err := g.Plug(name)
	if err != nil {
		fmt.Fprintf(w, "%s\t-\terror: %v\n", q, err)
		return err
	}
	h, err := g.HashOf(ctx, p, ec)
	if err != nil {
		fmt.Fprintf(w, "%s\t-\terror: %v\n", q, err)
		return err
	}
	v, err := g.Evaluate(ctx, p, ec)
	if err != nil {
		fmt.Fprintf(w, "%s\t%s\terror: %v\n", q, h, err)
		return err
	}
	fmt.Fprintf(w, "%s\t%s\t%v\n", q, h, v)
	return nil
}

func export(ctx context.Context, cfg config, g *plugraph.Graph) error {
	auth := neo4j.NoAuth()
	if cfg.Neo4jUser != "" {
		auth = neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, "")
	}
	d, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, auth)
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer func() {
		if err := d.Close(ctx); err != nil {
			component.Logger(ctx).Warn("Failed to close neo4j driver", slog.Any("error", err))
		}
	}()
	if err := d.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := neo4jexport.BootstrapDatabase(ctx, d, cfg.Neo4jDatabase); err != nil {
		return err
	}
	e := neo4jexport.NewExporter(d, cfg.Neo4jDatabase)
	if err := e.Export(ctx, g); err != nil {
		return err
	}
	c, err := e.Count(ctx, g.Name())
	if err != nil {
		return err
	}
	component.Logger(ctx).Info("Exported graph",
		"neo4j.database", cfg.Neo4jDatabase,
		"nodes", c.Nodes,
		"plugs", c.Plugs,
		"connections", c.Connections,
	)
	return nil
}
