/*
Package edit records changes to a plugraph.Graph as steps that can be stored,
transmitted to another process, and applied there.

The package provides a [Recorder] for collecting steps, [Encode] and [Decode]
for moving them across process boundaries, and [Replay] for turning them back
into a plugraph.Edit. Steps address nodes by name and plugs by full name (e.g.
"crop.area"), never by pointer, so they apply to any graph holding nodes with
these names.
*/
package edit

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"iter"

	"github.com/go-plugraph/plugraph"
)

// Step is a single change to a graph.
//
// All Step implementations must be registered with gob, and so must the types of
// the values they carry.
type Step interface {
	// Do applies the change through the provided plugraph.Writer.
	Do(context.Context, plugraph.Writer) error
	// Targets returns the names of the nodes the Step changes.
	Targets() iter.Seq[string]
}

// Encode serialises a slice of Steps for storage or transmission.
func Encode(s []Step) (data []byte, err error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(s); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a slice of Steps from the output of Encode.
func Decode(data []byte) (steps []Step, err error) {
	var s []Step
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return s, nil
}

// DecodeEdit decodes steps and replays them. It has the signature of a
// plugraph.EditDecoder, for use with plugraph.Editor.ApplyEdits.
func DecodeEdit(data []byte) (plugraph.Edit, error) {
	steps, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Replay(steps), nil
}

// Recorder collects a sequence of changes to a graph, each stored as a separate
// [Step] in the order it was added.
//
// The zero value of Recorder is ready to use. Do not copy a non-zero Recorder.
type Recorder struct {
	steps []Step
}

// Reset clears all accumulated steps.
func (r *Recorder) Reset() {
	r.steps = nil
}

// Steps returns a copy of the recorded steps. Modifying the returned slice does
// not affect the Recorder.
func (r *Recorder) Steps() []Step {
	s := make([]Step, len(r.steps))
	copy(s, r.steps)
	return s
}

// Replay returns a plugraph.Edit applying steps in order.
//
// If any step fails, the edit stops immediately and returns the error. The steps
// applied before it stay applied, as with any failed plugraph.Edit.
func Replay(steps []Step) plugraph.Edit {
	return func(ctx context.Context, w plugraph.Writer) error {
		for _, step := range steps {
			if err := step.Do(ctx, w); err != nil {
				return fmt.Errorf("%v: %w", step, err)
			}
		}
		return nil
	}
}

// Targets iterates over the names of all nodes changed by steps, yielding each
// name once.
func Targets(steps []Step) iter.Seq[string] {
	return func(yield func(string) bool) {
		var seen = make(map[string]struct{})
		for _, step := range steps {
			for target := range step.Targets() {
				if _, ok := seen[target]; ok {
					continue
				}
				seen[target] = struct{}{}
				if !yield(target) {
					return
				}
			}
		}
	}
}

// AddNode records creating a node of the registered type typeName (see
// plugraph.RegisterNodeType) and adding it to the graph under name.
func (r *Recorder) AddNode(typeName, name string) {
	r.steps = append(r.steps, addNode{Type: typeName, Name: name})
}

// RemoveNode records removing a node, which disconnects every plug connected to
// it.
func (r *Recorder) RemoveNode(name string) {
	r.steps = append(r.steps, removeNode{Name: name})
}

// SetValue records storing v on the input plug with the given full name. The
// dynamic type of v must be the plug's value type, and be registered with gob
// unless it is a basic type.
func (r *Recorder) SetValue(plug string, v any) {
	r.steps = append(r.steps, setValue{Plug: plug, Value: v})
}

// Connect records making dst receive its value from src.
func (r *Recorder) Connect(dst, src string) {
	r.steps = append(r.steps, connect{Dst: dst, Src: src})
}

// Disconnect records removing the input connection of plug.
func (r *Recorder) Disconnect(plug string) {
	r.steps = append(r.steps, disconnect{Plug: plug})
}
