package plugraph

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDetached is returned when operating on a plug whose node is not part of
	// a Graph, where the operation requires one.
	ErrDetached = errors.New("plugraph: node is not part of a graph")
	// ErrConnected is returned when setting the value of a plug that receives its
	// value from an input connection.
	ErrConnected = errors.New("plugraph: plug has an input connection")
	// ErrReadOnly is returned when setting the value of an output plug.
	ErrReadOnly = errors.New("plugraph: output plugs are computed, not set")
	// ErrCycle is returned by connections that would make a plug depend on
	// itself.
	ErrCycle = errors.New("plugraph: connection would create a cycle")
	// ErrIncompatible is returned by connections between plugs of different value
	// types, or of directions that cannot be connected.
	ErrIncompatible = errors.New("plugraph: incompatible plugs")
	// ErrTypeMismatch is returned when a value does not fit the plug it is given
	// to.
	ErrTypeMismatch = errors.New("plugraph: value type mismatch")
	// ErrDuplicateNode is returned when adding a node whose name is already
	// taken.
	ErrDuplicateNode = errors.New("plugraph: duplicate node name")
	// ErrNodeNotFound is returned by lookups of unknown node names.
	ErrNodeNotFound = errors.New("plugraph: node not found")
	// ErrPlugNotFound is returned by lookups of unknown plug names.
	ErrPlugNotFound = errors.New("plugraph: plug not found")
	// ErrUnknownNodeType is returned by NewNode for unregistered type names.
	ErrUnknownNodeType = errors.New("plugraph: unknown node type")
	// ErrRecursiveEvaluation is returned when computing a plug requires the
	// value being computed, under the same context.
	ErrRecursiveEvaluation = errors.New("plugraph: plug value depends on itself")
)

// A ComputeError reports the failure of a node to hash or compute one of its
// plugs. It names the offending node and plug; when an upstream failure
// propagates through several nodes, the error still names the node that failed
// first.
//
// Cancellation is never reported as a ComputeError.
type ComputeError struct {
	Node string // name of the failing node
	Plug string // full name of the plug being evaluated
	Op   string // "hash" or "compute"
	Err  error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Plug, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// wrapEvaluationError attaches the failing node to err, unless err is a
// cancellation or already attached to an upstream node.
func wrapEvaluationError(op string, p Plug, err error) error {
	if err == nil || isCancellation(err) {
		return err
	}
	var upstream *ComputeError
	if errors.As(err, &upstream) {
		return err
	}
	name := ""
	if n := p.Node(); n != nil {
		name = n.Name()
	}
	return &ComputeError{Node: name, Plug: p.FullName(), Op: op, Err: err}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
