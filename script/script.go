// Package script loads node graphs written in HCL.
//
// A script declares nodes, the values of their input plugs, and the connections
// between them:
//
//	version = "0.17.0"
//
//	node "image.Constant" "background" {
//	  format = "HD 1080"
//	  color  = [0.1, 0.1, 0.1, 1]
//	}
//
//	node "image.Crop" "crop" {
//	  area = [0, 0, 960, 540]
//	}
//
//	connect {
//	  from = "background.out"
//	  to   = "crop.in"
//	}
//
// Attribute names are plug names. Connecting a plug name shared by several
// plugs as a prefix (such as "crop.in" for "crop.in.format", "crop.in.dataWindow"
// and so on) connects each of them to the same-named plug of the source.
//
// Scripts saved before version 0.17 stored display windows with an inclusive
// maximum; their formats are converted when loaded (see
// image.ConvertLegacyFormat).
package script

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/danielorbach/go-component"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/edit"
	"github.com/go-plugraph/plugraph/image"
)

// File is a parsed script.
type File struct {
	Version     string        `hcl:"version,optional"`
	Nodes       []*NodeBlock  `hcl:"node,block"`
	Connections []*Connection `hcl:"connect,block"`
}

// NodeBlock declares a node of a registered type.
type NodeBlock struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// Connection connects the plug To to the plug From.
type Connection struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// Parse parses the script in src. The filename is only used in diagnostics.
func Parse(filename string, src []byte) (*File, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}
	return decodeFile(filename, file)
}

// Load parses the script stored at path.
func Load(ctx context.Context, path string) (*File, error) {
	logger := component.Logger(ctx)
	logger.Debug("Loading script", slog.String("path", path))
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}
	f, err := decodeFile(path, file)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded script",
		slog.String("path", path),
		slog.Int("nodes", len(f.Nodes)),
		slog.Int("connections", len(f.Connections)),
	)
	return f, nil
}

func decodeFile(filename string, file *hcl.File) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}
	return &f, nil
}

// Steps returns the edit steps building the script's graph: nodes are added in
// declaration order, each followed by its plug values, and connections come
// last.
func (f *File) Steps() ([]edit.Step, error) {
	// scripts without a version follow the current conventions.
	d := decoder{version: image.ExclusiveDisplayWindowVersion}
	if f.Version != "" {
		v, err := image.ParseVersion(f.Version)
		if err != nil {
			return nil, err
		}
		d.version = v
	}

	var r edit.Recorder
	prototypes := make(map[string]plugraph.Node, len(f.Nodes))
	for _, n := range f.Nodes {
		proto, err := plugraph.NewNode(n.Type, n.Name)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		prototypes[n.Name] = proto
		r.AddNode(n.Type, n.Name)
		if err := d.recordValues(&r, proto, n.Body); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
	}
	for _, c := range f.Connections {
		if err := recordConnection(&r, prototypes, c); err != nil {
			return nil, fmt.Errorf("connect %s to %s: %w", c.From, c.To, err)
		}
	}
	return r.Steps(), nil
}

// Edit returns the edit building the script's graph.
func (f *File) Edit() (plugraph.Edit, error) {
	steps, err := f.Steps()
	if err != nil {
		return nil, err
	}
	return edit.Replay(steps), nil
}

func (d decoder) recordValues(r *edit.Recorder, n plugraph.Node, body hcl.Body) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("%s", diags.Error())
	}
	// attributes come as a map; they are recorded in source order.
	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		sorted = append(sorted, a)
	}
	slices.SortFunc(sorted, func(a, b *hcl.Attribute) int {
		return cmp.Compare(a.Range.Start.Byte, b.Range.Start.Byte)
	})

	for _, a := range sorted {
		p := findPlug(n, a.Name)
		if p == nil {
			return fmt.Errorf("%w: %s.%s", plugraph.ErrPlugNotFound, n.Name(), a.Name)
		}
		if p.Direction() != plugraph.In {
			return fmt.Errorf("set %s: %w", p.FullName(), plugraph.ErrReadOnly)
		}
		v, diags := a.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("%s: %s", a.Name, diags.Error())
		}
		x, err := d.decode(v, p.Type())
		if err != nil {
			return fmt.Errorf("%s: %w", p.FullName(), err)
		}
		r.SetValue(p.FullName(), x.Interface())
	}
	return nil
}

func recordConnection(r *edit.Recorder, prototypes map[string]plugraph.Node, c *Connection) error {
	node, name, _ := strings.Cut(c.To, ".")
	dst, ok := prototypes[node]
	if !ok {
		return fmt.Errorf("%w: %q", plugraph.ErrNodeNotFound, node)
	}
	if findPlug(dst, name) != nil {
		r.Connect(c.To, c.From)
		return nil
	}
	var connected bool
	for _, p := range dst.Plugs() {
		if suffix, ok := strings.CutPrefix(p.Name(), name+"."); ok {
			r.Connect(p.FullName(), c.From+"."+suffix)
			connected = true
		}
	}
	if !connected {
		return fmt.Errorf("%w: %q", plugraph.ErrPlugNotFound, c.To)
	}
	return nil
}

func findPlug(n plugraph.Node, name string) plugraph.Plug {
	for _, p := range n.Plugs() {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
