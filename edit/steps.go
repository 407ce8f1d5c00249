package edit

import (
	"context"
	"encoding/gob"
	"fmt"
	"iter"
	"strings"

	"github.com/go-plugraph/plugraph"
)

// We register all Step implementations with gob.Register so that recorded edits
// can be decoded by another process.
func init() {
	gob.Register(addNode{})
	gob.Register(removeNode{})
	gob.Register(setValue{})
	gob.Register(connect{})
	gob.Register(disconnect{})
}

// An addNode is a Step creating a node of a registered type and adding it to the
// graph.
type addNode struct {
	Type, Name string
}

func (s addNode) Do(ctx context.Context, w plugraph.Writer) error {
	n, err := plugraph.NewNode(s.Type, s.Name)
	if err != nil {
		return err
	}
	return w.AddNode(n)
}

func (s addNode) Targets() iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(s.Name)
	}
}

func (s addNode) String() string { return fmt.Sprintf("add %s %q", s.Type, s.Name) }

// A removeNode is a Step removing a node along with its connections.
type removeNode struct {
	Name string
}

func (s removeNode) Do(ctx context.Context, w plugraph.Writer) error {
	return w.RemoveNode(s.Name)
}

func (s removeNode) Targets() iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(s.Name)
	}
}

func (s removeNode) String() string { return fmt.Sprintf("remove %q", s.Name) }

// A setValue is a Step storing a value on an input plug.
type setValue struct {
	Plug  string
	Value any
}

func (s setValue) Do(ctx context.Context, w plugraph.Writer) error {
	p, err := w.Plug(s.Plug)
	if err != nil {
		return err
	}
	return w.SetValue(p, s.Value)
}

func (s setValue) Targets() iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(nodeOf(s.Plug))
	}
}

func (s setValue) String() string { return fmt.Sprintf("set %s = %v", s.Plug, s.Value) }

// A connect is a Step making Dst receive its value from Src.
type connect struct {
	Dst, Src string
}

func (s connect) Do(ctx context.Context, w plugraph.Writer) error {
	dst, err := w.Plug(s.Dst)
	if err != nil {
		return err
	}
	src, err := w.Plug(s.Src)
	if err != nil {
		return err
	}
	return w.Connect(dst, src)
}

func (s connect) Targets() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(nodeOf(s.Dst)) {
			return
		}
		yield(nodeOf(s.Src))
	}
}

func (s connect) String() string { return fmt.Sprintf("connect %s <- %s", s.Dst, s.Src) }

// A disconnect is a Step removing the input connection of Plug.
type disconnect struct {
	Plug string
}

func (s disconnect) Do(ctx context.Context, w plugraph.Writer) error {
	p, err := w.Plug(s.Plug)
	if err != nil {
		return err
	}
	return w.Disconnect(p)
}

func (s disconnect) Targets() iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(nodeOf(s.Plug))
	}
}

func (s disconnect) String() string { return fmt.Sprintf("disconnect %s", s.Plug) }

// nodeOf returns the node part of a full plug name.
func nodeOf(fullName string) string {
	node, _, _ := strings.Cut(fullName, ".")
	return node
}
