package scene

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-plugraph/plugraph"
)

// PathKey is the context variable holding the location being queried, in its
// string form (see Path.String).
const PathKey = "scene:path"

// A Path locates a point in the scene hierarchy, as the names leading to it from
// the root. The root itself is the empty path.
type Path []string

// Root is the path of the scene's root location.
var Root Path

// ParsePath parses a slash separated location such as "/group/cube". Empty
// components are ignored, so "/", "" and "//" all name the root.
func ParsePath(s string) Path {
	var p Path
	for _, name := range strings.Split(s, "/") {
		if name != "" {
			p = append(p, name)
		}
	}
	return p
}

// An InvalidNameError reports a location name that cannot be a component of a
// Path: it is empty or contains a slash.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("scene: invalid location name %q", e.Name)
}

// CheckName returns an *InvalidNameError unless name can name a location.
func CheckName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// locationName reads a location name from p and checks it.
func locationName(ctx context.Context, ec *plugraph.Context, p *plugraph.ValuePlug[string]) (string, error) {
	name, err := p.Value(ctx, ec)
	if err != nil {
		return "", err
	}
	return name, CheckName(name)
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Name returns the last component of p, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return p[len(p)-1]
}

// Child returns the path of the child location called name. The result never
// shares storage with p.
func (p Path) Child(name string) Path {
	return append(slices.Clip(p), name)
}

// Parent returns the path of the parent location. The root is its own parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	return slices.Clone(p[:len(p)-1])
}

// WithPath returns ec with PathKey set to path.
func WithPath(ec *plugraph.Context, path Path) *plugraph.Context {
	return ec.With(PathKey, path.String())
}

// ContextPath returns the location ec is evaluating. It fails with a
// *plugraph.MissingContextKeyError if ec names no location.
func ContextPath(ec *plugraph.Context) (Path, error) {
	s, err := plugraph.ContextValue[string](ec, PathKey)
	if err != nil {
		return nil, err
	}
	return ParsePath(s), nil
}
