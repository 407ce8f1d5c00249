package plugraph

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PlugsDirtied notifies that an edit has invalidated a set of plugs of a graph.
// The graph's edit generation was Before when the edit started and After when it
// ended; consumers observing consecutive notifications can detect missed ones by
// comparing a notification's Before with the previous After.
type PlugsDirtied struct {
	Graph  string
	Before uint64
	After  uint64
	// Plugs holds the full names of the dirtied plugs in propagation order, each
	// exactly once.
	Plugs []string
	// The time, in UTC, the notification was published. Set by publishers only;
	// in-process notifications leave it zero.
	Timestamp time.Time
}

// IsEmpty returns true if the notification invalidated nothing.
func (d PlugsDirtied) IsEmpty() bool {
	return len(d.Plugs) == 0
}

// Contains reports whether the named plug was dirtied.
func (d PlugsDirtied) Contains(fullName string) bool {
	return slices.Contains(d.Plugs, fullName)
}

// NodeDirtied notifies about the plugs of a single node dirtied by an edit. It
// is the per-node slice of a PlugsDirtied notification, published so that
// consumers interested in a few nodes need not filter whole-graph batches.
type NodeDirtied struct {
	Graph string
	Node  string
	// Plugs holds plug names relative to the node, e.g. "out.format".
	Plugs []string
	// Generation is the PlugsDirtied.After of the notification this one was cut
	// from.
	Generation uint64
	Timestamp  time.Time
}

// SplitByNode cuts d into one NodeDirtied per node, in the order the nodes first
// appear in d.
func SplitByNode(d PlugsDirtied) []NodeDirtied {
	var changes []NodeDirtied
	index := make(map[string]int)
	for _, fullName := range d.Plugs {
		node, plug, _ := strings.Cut(fullName, ".")
		i, ok := index[node]
		if !ok {
			i = len(changes)
			index[node] = i
			changes = append(changes, NodeDirtied{
				Graph:      d.Graph,
				Node:       node,
				Generation: d.After,
				Timestamp:  d.Timestamp,
			})
		}
		changes[i].Plugs = append(changes[i].Plugs, plug)
	}
	return changes
}

// FormatDirtied returns a human-readable representation of the notification.
// The indent string is prepended to each line.
func FormatDirtied(d PlugsDirtied, indent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, indent+"graph %s: generation %d -> %d\n", d.Graph, d.Before, d.After)
	for _, c := range SplitByNode(d) {
		fmt.Fprintf(&b, indent+"* %s\n", c.Node)
		for _, p := range c.Plugs {
			fmt.Fprintf(&b, indent+"  %s\n", p)
		}
	}
	return b.String()
}
