package plugraph

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// hash returns the hash of p under ec. The caller holds the evaluation lock.
func (g *Graph) hash(ctx context.Context, p Plug, ec *Context) (Hash, error) {
	b := p.base()
	if b.input != nil {
		return g.hash(ctx, b.input, ec)
	}
	if b.dir == In {
		return b.valueHash, nil
	}

	key := hashKey{plug: b.id, context: ec.Hash(), dirty: b.dirtyCount.Load()}
	if h, ok := g.cache.hashes.Get(key); ok {
		return h, nil
	}
	if err := ctx.Err(); err != nil {
		return Hash{}, err
	}

	g.cache.hashComputes.Add(1)
	var h Hasher
	var err error
	if x, ok := b.owner.self.(NodeHasher); ok {
		err = x.Hash(ctx, p, ec, &h)
	} else {
		err = DefaultHash(ctx, p, ec, &h)
	}
	if err != nil {
		return Hash{}, wrapEvaluationError("hash", p, err)
	}
	sum := h.Sum()
	g.cache.hashes.Add(key, sum)
	return sum, nil
}

// value returns the value of p under ec. The caller holds the evaluation lock.
//
// Concurrent requests for the same plug and hash share a single computation.
// When the computation is abandoned because the requester leading it was
// cancelled, the remaining requesters retry, so one cancelled caller never
// fails the others. Failures and cancellations are never cached.
func (g *Graph) value(ctx context.Context, p Plug, ec *Context) (any, error) {
	b := p.base()
	if b.input != nil {
		return g.value(ctx, b.input, ec)
	}
	if b.dir == In {
		b.dirty.Store(false)
		return p.storedValue(), nil
	}

	digest, err := g.hash(ctx, p, ec)
	if err != nil {
		return nil, err
	}
	key := valueKey{plug: b.id, context: ec.Hash()}
	if e, ok := g.cache.values.Get(key); ok && e.hash == digest {
		g.cache.hits.Add(1)
		return e.value, nil
	}
	g.cache.misses.Add(1)

	fk := flightKey(b.id, digest)
	chain, _ := ctx.Value(inFlightKey{}).(*inFlight)
	if chain.contains(g, fk) {
		// waiting on our own flight would never return.
		return nil, wrapEvaluationError("compute", p, ErrRecursiveEvaluation)
	}
	cctx := context.WithValue(ctx, inFlightKey{}, &inFlight{g: g, key: fk, parent: chain})

	for {
		// the leader computes on its own goroutine, hence under the evaluation
		// lock its caller holds.
		v, err, _ := g.cache.flight.Do(fk, func() (any, error) {
			// another computation may have finished between our lookup and us
			// becoming the leader.
			if e, ok := g.cache.values.Get(key); ok && e.hash == digest {
				return e.value, nil
			}
			v, err := g.compute(cctx, p, ec)
			if err != nil {
				return nil, err
			}
			g.cache.values.Add(key, valueEntry{hash: digest, value: v})
			return v, nil
		})
		if err != nil && isCancellation(err) && ctx.Err() == nil {
			continue
		}
		return v, err
	}
}

type inFlightKey struct{}

// inFlight lists the computations a context descends from, innermost first.
type inFlight struct {
	g      *Graph
	key    string
	parent *inFlight
}

func (f *inFlight) contains(g *Graph, key string) bool {
	for ; f != nil; f = f.parent {
		if f.g == g && f.key == key {
			return true
		}
	}
	return false
}

func (g *Graph) compute(ctx context.Context, p Plug, ec *Context) (v any, err error) {
	b := p.base()
	n := b.owner.self
	ctx, span := tracer.Start(ctx, "plugraph.compute", trace.WithAttributes(
		attribute.String("plug", p.FullName()),
		attribute.String("node.type", n.TypeName()),
	))
	defer span.End()

	defer func(start time.Time) {
		measureCompute(ctx, g.name, n.TypeName(), err == nil || isCancellation(err), time.Since(start))
	}(time.Now())

	g.cache.computes.Add(1)
	component.Logger(ctx).Debug("Computing plug", slog.String("plug", p.FullName()), slog.Any("context", ec))

	v, err = n.Compute(ctx, p, ec)
	if err != nil {
		err = wrapEvaluationError("compute", p, err)
		if !isCancellation(err) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	if v != nil && !reflect.TypeOf(v).AssignableTo(b.typ) {
		err = wrapEvaluationError("compute", p, fmt.Errorf("got %T, want %s: %w", v, b.typ, ErrTypeMismatch))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	b.dirty.Store(false)
	return v, nil
}
