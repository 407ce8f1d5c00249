package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"github.com/go-plugraph/plugraph"
)

// config holds the settings of a single run, read from flags, PLUGRAPH_*
// environment variables and an optional config file, in decreasing order of
// priority.
type config struct {
	Script        string
	Queries       []string
	Frame         float64
	CacheEntries  int
	LogLevel      string
	LogFormat     string
	Neo4jURI      string
	Neo4jDatabase string
	Neo4jUser     string
	Neo4jPassword string
}

// errUsage reports invalid arguments after the usage was printed.
var errUsage = errors.New("invalid arguments")

func parseConfig(args []string, output io.Writer) (config, error) {
	fs := flag.NewFlagSet("plugraph", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `plugraph loads a node graph script and evaluates plugs of the loaded graph.

Usage:
  plugraph -script FILE [-query PLUG[@PATH]]... [options]

Every option may also be set through an environment variable named after the
flag (e.g. PLUGRAPH_LOG_LEVEL), or in the file named by -config.

Options:
`)
		fs.PrintDefaults()
	}

	c := config{Frame: 1}
	fs.StringVar(&c.Script, "script", "", "path to the node graph script (.hcl)")
	fs.Func("query", "plug to evaluate, by full name, optionally followed by @ and a scene path (repeatable)", func(s string) error {
		c.Queries = append(c.Queries, s)
		return nil
	})
	fs.Float64Var(&c.Frame, "frame", c.Frame, "frame to evaluate at")
	fs.IntVar(&c.CacheEntries, "cache-entries", plugraph.DefaultCacheConfig.ValueEntries, "number of values kept in the cache")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&c.Neo4jURI, "neo4j-uri", "", "export the loaded graph to the Neo4j server at this URI")
	fs.StringVar(&c.Neo4jDatabase, "neo4j-database", "plugraph", "database to export into")
	fs.StringVar(&c.Neo4jUser, "neo4j-user", "", "Neo4j user; authentication is disabled when empty")
	fs.StringVar(&c.Neo4jPassword, "neo4j-password", "", "Neo4j password")
	fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("PLUGRAPH"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		return config{}, err
	}

	if c.Script == "" {
		fs.Usage()
		return config{}, errUsage
	}
	if c.CacheEntries <= 0 {
		return config{}, fmt.Errorf("cache-entries must be positive, got %d", c.CacheEntries)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return config{}, err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return config{}, fmt.Errorf("invalid log-format %q: must be text or json", c.LogFormat)
	}
	return c, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log-level %q: %w", s, err)
	}
	return l, nil
}

func (c config) logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel) // validated by parseConfig
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c config) cacheConfig() plugraph.CacheConfig {
	cfg := plugraph.DefaultCacheConfig
	cfg.ValueEntries = c.CacheEntries
	// hashes are much smaller than values, keep proportionally more of them.
	cfg.HashEntries = 4 * c.CacheEntries
	return cfg
}
