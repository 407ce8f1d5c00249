package plugraph

import (
	"context"
	"errors"
	"sync"
)

// Evaluations may run concurrently with each other but never with an edit:
// computations read plug values, connections and dirty counts without further
// synchronisation, which is only sound while the graph's topology stands still.
//
// To enforce this type of locking, we are introducing the evalEditMutex, an
// adaptation of sync.RWMutex in which evaluations share the lock and edits own
// it exclusively. The zero value for an evalEditMutex is an unlocked mutex.
//
// Evaluation is re-entrant: a computation evaluates its upstream plugs, possibly
// on other goroutines, while the top-level evaluation holds the lock. Since a
// blocked writer excludes new readers of a sync.RWMutex, nested evaluations must
// not lock again. The holder is therefore recorded in the context.Context passed
// down the evaluation (see Graph.enterEval), and nested calls skip locking.
type evalEditMutex sync.RWMutex

// EvalLock locks m for evaluation. Concurrent evaluations share the lock.
func (m *evalEditMutex) EvalLock() {
	(*sync.RWMutex)(m).RLock()
}

// EvalUnlock undoes a single EvalLock call; it does not affect other
// simultaneous evaluations.
func (m *evalEditMutex) EvalUnlock() {
	(*sync.RWMutex)(m).RUnlock()
}

// EditLock locks m for editing. If the lock is already locked for evaluation or
// editing, EditLock blocks until the lock is available.
func (m *evalEditMutex) EditLock() {
	(*sync.RWMutex)(m).Lock()
}

// EditUnlock unlocks m for editing. It is a run-time error if m is not locked
// for editing on entry to EditUnlock.
func (m *evalEditMutex) EditUnlock() {
	(*sync.RWMutex)(m).Unlock()
}

// errEditDuringEvaluation is returned by Apply when called from a computation.
var errEditDuringEvaluation = errors.New("plugraph: graph edited during evaluation")

type lockMode int

const (
	evalHeld lockMode = iota + 1
	editHeld
)

type lockKey struct{ g *Graph }

func (g *Graph) heldLock(ctx context.Context) lockMode {
	m, _ := ctx.Value(lockKey{g}).(lockMode)
	return m
}

// enterEval locks g for evaluation, unless ctx already descends from a holder of
// either lock. The returned context marks its holder; release must be called
// exactly once.
func (g *Graph) enterEval(ctx context.Context) (_ context.Context, release func()) {
	if g.heldLock(ctx) != 0 {
		return ctx, func() {}
	}
	g.mu.EvalLock()
	return context.WithValue(ctx, lockKey{g}, evalHeld), g.mu.EvalUnlock
}

// enterEdit locks g for editing. Edits nest within edits, but never within
// evaluations.
func (g *Graph) enterEdit(ctx context.Context) (_ context.Context, release func(), err error) {
	switch g.heldLock(ctx) {
	case editHeld:
		return ctx, func() {}, nil
	case evalHeld:
		return ctx, nil, errEditDuringEvaluation
	}
	g.mu.EditLock()
	return context.WithValue(ctx, lockKey{g}, editHeld), g.mu.EditUnlock, nil
}
