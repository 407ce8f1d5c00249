package scene

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/go-plugraph/plugraph"
	"golang.org/x/sync/errgroup"
)

// SkipChildren is used as a return value from a WalkFunc to indicate that the
// children of the location named in the call are to be skipped. It is not
// returned as an error by any function.
var SkipChildren = errors.New("skip children")

// WalkFunc is the type of the function called by Walk to visit each location.
type WalkFunc func(path Path) error

// Walk visits the locations of the scene in depth-first order, starting at the
// root and visiting children in the order of their names. If fn returns
// SkipChildren, the children of that location are not visited; any other error
// stops the walk and is returned.
func Walk(ctx context.Context, s Plug, ec *plugraph.Context, fn WalkFunc) error {
	return walk(ctx, s, ec, Root, fn)
}

func walk(ctx context.Context, s Plug, ec *plugraph.Context, path Path, fn WalkFunc) error {
	if err := fn(path); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	names, err := s.ChildNames(ctx, ec, path)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := walk(ctx, s, ec, path.Child(name), fn); err != nil {
			return err
		}
	}
	return nil
}

// Inspect visits the locations of the scene like Walk. If f returns false, the
// children of that location are skipped.
func Inspect(ctx context.Context, s Plug, ec *plugraph.Context, f func(path Path) bool) error {
	return Walk(ctx, s, ec, func(path Path) error {
		if !f(path) {
			return SkipChildren
		}
		return nil
	})
}

// ParallelWalk calls fn for every location of the scene, evaluating up to limit
// locations concurrently (no limit if limit <= 0). Locations are visited in no
// particular order, but a location is always visited before its children. The
// first error cancels the walk and is returned.
func ParallelWalk(ctx context.Context, s Plug, ec *plugraph.Context, limit int, fn func(ctx context.Context, path Path) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	var visit func(path Path) error
	visit = func(path Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, path); err != nil {
			return err
		}
		names, err := s.ChildNames(ctx, ec, path)
		if err != nil {
			return err
		}
		for _, name := range names {
			child := path.Child(name)
			// visit on this goroutine when the limit is reached; waiting for a slot
			// could deadlock, as every running visit may be waiting too.
			if !g.TryGo(func() error { return visit(child) }) {
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	g.Go(func() error { return visit(Root) })
	err := g.Wait()
	if err != nil {
		component.Logger(ctx).Debug("Parallel walk failed", slog.Any("error", err))
	}
	return err
}
