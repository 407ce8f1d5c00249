// Package plugraph provides a lazy, demand-driven dataflow graph engine.
//
// A Graph holds nodes; every node owns a fixed set of typed plugs. Input plugs
// hold values set by the user or received through connections from other plugs,
// and output plugs are computed by their node on demand, under a Context naming
// variables such as the current frame or the scene location being queried.
//
// Evaluation is pull-based and memoised in two stages. First, the hash of the
// requested plug is computed: a digest of everything the value depends on,
// obtained without computing any value. Then the value is looked up in the Cache
// by that hash, and computed only on a miss. Concurrent requests for the same
// value share a single computation.
//
// Edits (setting values, connecting and disconnecting plugs, adding and removing
// nodes) are applied through Graph.Apply. Every edit propagates dirtiness
// downstream through connections and through the affects relation declared by
// nodes, invalidating the cached hashes of every plug it reaches, and reports
// the dirtied plugs as a PlugsDirtied notification. Notifications can be
// published to a pubsub topic, split per node (NewSplitter), and consumed to
// keep a Watcher's view of selected plugs up to date.
//
// Packages scene and image build hierarchical scene and tiled image processing
// on top of this package; package edit records edits as serialisable steps.
package plugraph
