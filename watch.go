package plugraph

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"iter"
	"sync"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// Watched is the last known evaluation of a watched plug.
type Watched struct {
	Value any
	Hash  Hash
	Err   error
}

// A Watcher keeps the values of a set of plugs, each under its own context, up
// to date as the graph is edited. Feed it PlugsDirtied notifications through
// Update, either directly from Graph.OnDirtied or from a pubsub subscription
// with TrackDirtied.
//
// Watcher is safe for concurrent use.
type Watcher struct {
	g       *Graph
	mu      sync.Mutex
	entries map[watchKey]*watchEntry
}

type watchKey struct {
	plug    string
	context Hash
}

type watchEntry struct {
	plug   Plug
	ec     *Context
	result Watched
}

func NewWatcher(g *Graph) *Watcher {
	return &Watcher{g: g, entries: make(map[watchKey]*watchEntry)}
}

// Watch starts watching p under ec and returns its current evaluation.
func (w *Watcher) Watch(ctx context.Context, p Plug, ec *Context) Watched {
	e := &watchEntry{plug: p, ec: ec, result: w.evaluate(ctx, p, ec)}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[watchKey{p.FullName(), ec.Hash()}] = e
	return e.result
}

// Unwatch stops watching p under ec.
func (w *Watcher) Unwatch(p Plug, ec *Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, watchKey{p.FullName(), ec.Hash()})
}

// Find returns the last known evaluation of p under ec. If p is not watched
// under ec, Find indicates that by returning ok == false.
func (w *Watcher) Find(p Plug, ec *Context) (v Watched, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[watchKey{p.FullName(), ec.Hash()}]
	if !ok {
		return Watched{}, false
	}
	return e.result, true
}

// Update re-evaluates the watched plugs that d dirtied. Plugs that were not
// dirtied keep their last evaluation.
//
// Watches follow plugs by name: the watches of a removed node are dropped, and
// a node added under the same name takes them over.
func (w *Watcher) Update(ctx context.Context, d PlugsDirtied) {
	type update struct {
		key  watchKey
		e    *watchEntry
		plug Plug
	}
	w.mu.Lock()
	var stale []update
	for k, e := range w.entries {
		p, err := w.g.plugAt(ctx, k.plug)
		switch {
		case err != nil:
			delete(w.entries, k)
		case p != e.plug:
			e.plug = p
			stale = append(stale, update{k, e, p})
		case d.Contains(k.plug):
			stale = append(stale, update{k, e, p})
		}
	}
	w.mu.Unlock()

	// evaluate without holding the lock; computations may be slow.
	for _, u := range stale {
		r := w.evaluate(ctx, u.plug, u.e.ec)
		w.mu.Lock()
		if cur, ok := w.entries[u.key]; ok && cur == u.e && cur.plug == u.plug {
			u.e.result = r
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) evaluate(ctx context.Context, p Plug, ec *Context) Watched {
	h, err := w.g.HashOf(ctx, p, ec)
	if err != nil {
		return Watched{Err: err}
	}
	v, err := w.g.Evaluate(ctx, p, ec)
	return Watched{Value: v, Hash: h, Err: err}
}

// All iterates over the watched plugs (by full name) and their last known
// evaluation.
func (w *Watcher) All() iter.Seq2[string, Watched] {
	return func(yield func(string, Watched) bool) {
		w.mu.Lock()
		type pair struct {
			name string
			v    Watched
		}
		pairs := make([]pair, 0, len(w.entries))
		for k, e := range w.entries {
			pairs = append(pairs, pair{k.plug, e.result})
		}
		w.mu.Unlock()
		for _, p := range pairs {
			if !yield(p.name, p.v) {
				return
			}
		}
	}
}

// TrackDirtied returns a component.Proc that consumes PlugsDirtied notifications
// published (see Publish) for the watcher's graph, and updates the watcher with
// each of them in turn.
//
// The procedure stops if it detects a discontinuity between consecutive
// notifications, as the watched values may have silently gone stale.
func TrackDirtied(w *Watcher, source *pubsub.Subscription) component.Proc {
	return func(l *component.L) {
		var tracked uint64
		var tracking bool
		for l.Continue() {
			msg, err := source.Receive(l.GraceContext())
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				l.Errorf("receive: %v", err)
				continue
			}
			var dirtied PlugsDirtied
			dec := gob.NewDecoder(bytes.NewReader(msg.Body))
			if err := dec.Decode(&dirtied); err != nil {
				l.Fatalf("Failed to unmarshal dirtied plugs; stopping watch: %v\n", err)
			}

			if tracking && tracked != dirtied.Before {
				l.Logf("Detected a discontinuity in PlugsDirtied messages: last handled generation %d, received previous generation %d",
					tracked, dirtied.Before)
				l.Fatalf("Exiting due to detected discontinuity")
			}
			tracked, tracking = dirtied.After, true

			w.Update(l.Context(), dirtied)
			msg.Ack()
		}
	}
}
